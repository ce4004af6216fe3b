package uuidutil

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// UUID returns a random id as plain hex, used to stamp one polling run
// in trace files and as the MQTT client id suffix.
func UUID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
