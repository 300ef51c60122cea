package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix         = "user:%d"
	ConversationKeyPrefix = "conversation:%d"
)

const (
	UserTTL         = 5 * time.Minute
	ConversationTTL = 2 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func ConversationKey(convID uint) string {
	return fmt.Sprintf(ConversationKeyPrefix, convID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidateConversation(ctx context.Context, convID uint) {
	Invalidate(ctx, ConversationKey(convID))
}
