package membership

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"guildchat-backend/internal/database"
)

const (
	inviteAlphabet   = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	inviteRandomLen  = 4
	inviteIDDigits   = 6
	inviteMaxAttempt = 5
)

// newInviteCode is the last 6 decimal digits of the server id followed by 4 random
// base36 characters.
func newInviteCode(serverID int64) (string, error) {
	id := strconv.FormatInt(serverID, 10)
	if len(id) > inviteIDDigits {
		id = id[len(id)-inviteIDDigits:]
	}

	var sb strings.Builder
	sb.WriteString(id)
	for i := 0; i < inviteRandomLen; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(inviteAlphabet))))
		if err != nil {
			return "", err
		}
		sb.WriteByte(inviteAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

func uniqueInviteCode(ctx context.Context, q database.Querier, serverID int64) (string, error) {
	for attempt := 0; attempt < inviteMaxAttempt; attempt++ {
		inviteCode, err := newInviteCode(serverID)
		if err != nil {
			return "", err
		}

		var taken bool
		err = q.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM servers WHERE invite_code = ?)", inviteCode).Scan(&taken)
		if err != nil {
			return "", err
		}
		if !taken {
			return inviteCode, nil
		}
	}
	return "", fmt.Errorf("couldn't generate a unique invite code for server ID %d", serverID)
}
