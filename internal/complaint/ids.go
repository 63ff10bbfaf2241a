package complaint

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"

	"qabulxona/backend/internal/config"
)

// IDGenerator produces complaint ids.
type IDGenerator interface {
	NewID(userID int64, now time.Time) string
}

// CompositeIDs builds "<userId>_<unixMillis>".
type CompositeIDs struct{}

func (CompositeIDs) NewID(userID int64, now time.Time) string {
	return strconv.FormatInt(userID, 10) + "_" + strconv.FormatInt(now.UnixMilli(), 10)
}

// NumericIDs builds short six digit codes. Collisions are expected and
// resolved by retrying the insert.
type NumericIDs struct{}

func (NumericIDs) NewID(int64, time.Time) string {
	return fmt.Sprintf("%06d", 100000+rand.IntN(900000))
}

// UUIDs builds random version 4 UUIDs.
type UUIDs struct{}

func (UUIDs) NewID(int64, time.Time) string {
	return uuid.NewString()
}

// NewIDGenerator returns the generator for a configured scheme.
func NewIDGenerator(scheme string) (IDGenerator, error) {
	switch scheme {
	case config.IDSchemeComposite, "":
		return CompositeIDs{}, nil
	case config.IDSchemeNumeric:
		return NumericIDs{}, nil
	case config.IDSchemeUUID:
		return UUIDs{}, nil
	}
	return nil, fmt.Errorf("unknown complaint id scheme %q", scheme)
}
