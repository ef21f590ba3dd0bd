package chat

import "time"

// Conversation links exactly two users around one marketplace listing. The
// user pair is order-normalized (lower id first) so the inverse pair never
// creates a duplicate row; one conversation exists per (pair, listing).
type Conversation struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null"`
	User1ID   string    `gorm:"column:user1_id;size:36;not null;uniqueIndex:idx_conversations_pair_listing,priority:1"`
	User2ID   string    `gorm:"column:user2_id;size:36;not null;uniqueIndex:idx_conversations_pair_listing,priority:2"`
	ListingID string    `gorm:"column:listing_id;size:36;not null;uniqueIndex:idx_conversations_pair_listing,priority:3"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Conversation) TableName() string {
	return "conversations"
}

// Message is one append-only chat message. Rows are never edited.
type Message struct {
	ID             string    `gorm:"column:id;primaryKey;size:36;not null"`
	ConversationID string    `gorm:"column:conversation_id;size:36;not null;index:idx_messages_conversation"`
	SenderID       string    `gorm:"column:sender_id;size:36;not null"`
	ReceiverID     string    `gorm:"column:receiver_id;size:36;not null"`
	Content        string    `gorm:"column:content;type:text;not null"`
	SentAt         time.Time `gorm:"column:sent_at;not null"`
	Read           bool      `gorm:"column:read;not null;default:false"`
}

// TableName provides the explicit table binding for GORM.
func (Message) TableName() string {
	return "messages"
}

// NormalizePair orders two user ids so the lexicographically lower one comes
// first.
func NormalizePair(userA, userB string) (string, string) {
	if userB < userA {
		return userB, userA
	}
	return userA, userB
}
