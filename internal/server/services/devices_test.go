package services

import (
	"context"
	"errors"
	"testing"

	"github.com/obsync-io/obsync/internal/common"
	"github.com/obsync-io/obsync/internal/server/models"
)

func TestDeviceRegister(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	m := newFakeRepoManager()
	s := NewDeviceService(db, m, newGate(db, m))
	ctx := context.Background()

	record, err := s.Register(ctx, writerPrincipal(), &RegisterDeviceRequest{
		DeviceID:    testDeviceID,
		DisplayName: "laptop",
		PublicKey:   "pk",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if record.DeviceID != testDeviceID || record.DisplayName != "laptop" {
		t.Fatalf("unexpected record: %+v", record)
	}

	if len(m.d.registered) != 1 || m.d.registered[0].Owner != testOwner {
		t.Fatalf("owner must come from the principal: %+v", m.d.registered)
	}

	if _, err := s.Register(ctx, writerPrincipal(), &RegisterDeviceRequest{DeviceID: "laptop"}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("want validation error for bad id, got %v", err)
	}
	if _, err := s.Register(ctx, readerPrincipal(), &RegisterDeviceRequest{DeviceID: testDeviceID}); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("reader must not register devices, got %v", err)
	}
}

func TestDeviceList(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	m := newFakeRepoManager()
	m.d.list = []*models.Device{
		{ID: testDeviceID, Owner: testOwner, DisplayName: "laptop"},
	}

	s := NewDeviceService(db, m, newGate(db, m))

	records, err := s.List(context.Background(), readerPrincipal())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(records) != 1 || records[0].DeviceID != testDeviceID {
		t.Fatalf("unexpected records: %+v", records)
	}
}
