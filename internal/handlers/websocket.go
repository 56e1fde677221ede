package handlers

import (
	"context"
	"net/http"

	"guildchat-backend/internal/apperrors"
	"guildchat-backend/internal/hub"
)

// subscriptionGate lets a websocket session listen to a server or one of its channels
// only while the user belongs to that server.
type subscriptionGate struct{}

func (subscriptionGate) AuthorizeSubscription(ctx context.Context, userID int64, kind string, id int64) error {
	switch kind {
	case hub.KindServer:
		_, err := servers.RequireMember(ctx, id, userID)
		return err
	case hub.KindChannel:
		channel, err := channelService.Get(ctx, id)
		if err != nil {
			return err
		}
		_, err = servers.RequireMember(ctx, channel.ServerID, userID)
		return err
	default:
		return apperrors.Validation("Unknown subscription type")
	}
}

// SubscriptionGate is handed to hub.Setup, it uses the services given to NewRouter.
func SubscriptionGate() hub.Authorizer {
	return subscriptionGate{}
}

func HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	hub.HandleClient(w, r, userIDFrom(r))
}
