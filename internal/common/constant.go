package common

// WebsocketAuthProtocol is the WebSocket subprotocol name whose companion
// entry in the client's protocol list carries the bearer token.
const WebsocketAuthProtocol = "obsync-auth"

// LegacyTokenQueryParam is the query parameter accepted as a bearer-token
// fallback. Its value must never be written to logs.
const LegacyTokenQueryParam = "token"
