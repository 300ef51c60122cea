package seed

import (
	"fmt"
	"log"

	"hearth/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options configures a seeding run.
type Options struct {
	NumUsers          int
	NumConversations  int
	MessagesPerConv   int
	GroupRatioPercent int // percentage of conversations created as groups
	ShouldClean       bool
	SkipBcrypt        bool
	MaxHoursBack      int
}

// Defaults fills zero-valued fields with sensible development defaults.
func (o *Options) Defaults() {
	if o.NumUsers <= 0 {
		o.NumUsers = 25
	}
	if o.NumConversations <= 0 {
		o.NumConversations = 40
	}
	if o.MessagesPerConv <= 0 {
		o.MessagesPerConv = 15
	}
	if o.GroupRatioPercent <= 0 {
		o.GroupRatioPercent = 30
	}
}

// Seeder populates the database with demo data.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	opts    Options
}

// NewSeeder creates a Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	opts.Defaults()
	return &Seeder{
		db:      db,
		factory: NewFactory(db, opts),
		opts:    opts,
	}
}

// ClearAll removes all seeded data. Child tables first to satisfy foreign keys.
func (s *Seeder) ClearAll() error {
	log.Println("Clearing existing data...")
	tables := []string{"messages", "conversation_participants", "conversations", "users"}
	for _, table := range tables {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			if models.IsSchemaMissingError(err) {
				continue
			}
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// Run seeds users, conversations, and messages per the configured options.
func (s *Seeder) Run() error {
	log.Printf("Seeding %d users, %d conversations, ~%d messages each...",
		s.opts.NumUsers, s.opts.NumConversations, s.opts.MessagesPerConv)

	if s.opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			return err
		}
	}

	users := make([]*models.User, 0, s.opts.NumUsers)
	for i := 0; i < s.opts.NumUsers; i++ {
		user, err := s.factory.CreateUser()
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		users = append(users, user)
	}
	if len(users) < 2 {
		return fmt.Errorf("need at least 2 users to seed conversations")
	}

	// Track seeded direct pairs so the unique direct key never collides.
	seededPairs := make(map[string]bool)

	created := 0
	for created < s.opts.NumConversations {
		var conv *models.Conversation
		var members []*models.User

		if s.factory.rng.Intn(100) < s.opts.GroupRatioPercent {
			size := s.factory.rng.Intn(4) + 3
			if size > len(users) {
				size = len(users)
			}
			members = pickUsers(s.factory, users, size)
			name := gofakeit.NounCollectiveThing()
			c, err := s.factory.CreateGroupConversation(name, members)
			if err != nil {
				return fmt.Errorf("create group conversation: %w", err)
			}
			conv = c
		} else {
			pair := pickUsers(s.factory, users, 2)
			key := models.DirectConversationKey(pair[0].ID, pair[1].ID)
			if seededPairs[key] {
				// All pairs may be exhausted with few users; fall through to
				// retry, bounded by the loop condition below.
				if len(seededPairs) >= len(users)*(len(users)-1)/2 {
					s.opts.GroupRatioPercent = 100
				}
				continue
			}
			seededPairs[key] = true
			c, err := s.factory.CreateDirectConversation(pair[0], pair[1])
			if err != nil {
				return fmt.Errorf("create direct conversation: %w", err)
			}
			conv = c
			members = pair
		}

		numMessages := s.factory.rng.Intn(s.opts.MessagesPerConv*2) + 1
		for m := 0; m < numMessages; m++ {
			sender := members[s.factory.rng.Intn(len(members))]
			if _, err := s.factory.CreateMessage(conv, sender); err != nil {
				return fmt.Errorf("create message: %w", err)
			}
		}
		created++
	}

	log.Printf("Seeding complete: %d users, %d conversations", len(users), created)
	return nil
}

// pickUsers selects n distinct users at random.
func pickUsers(f *Factory, users []*models.User, n int) []*models.User {
	perm := f.rng.Perm(len(users))
	picked := make([]*models.User, 0, n)
	for _, idx := range perm[:n] {
		picked = append(picked, users[idx])
	}
	return picked
}
