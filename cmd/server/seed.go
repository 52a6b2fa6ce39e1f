package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-realtime/internal/app"
	"github.com/vovakirdan/wirechat-realtime/internal/auth"
	"github.com/vovakirdan/wirechat-realtime/internal/store"
)

const (
	demoPassword = "password"
	demoGroupID  = "demo"
)

var demoUsers = []struct {
	name  string
	phone string
}{
	{"alice", "5550001"},
	{"bob", "5550002"},
	{"carol", "5550003"},
}

func newSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create demo users, conversations and a group",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			ctx := context.Background()
			st := application.Store()

			users := make([]*store.User, 0, len(demoUsers))
			for _, d := range demoUsers {
				u, err := ensureUser(ctx, st, d.name, d.phone)
				if err != nil {
					return err
				}
				users = append(users, u)
			}
			alice, bob, carol := users[0], users[1], users[2]

			convs := application.Conversations()
			accepted, err := convs.Request(ctx, alice.ID, bob.ID)
			if err != nil {
				return fmt.Errorf("request alice-bob: %w", err)
			}
			if accepted.Status != store.ConversationStatusAccepted {
				if accepted, err = convs.Accept(ctx, bob.ID, accepted.ID); err != nil {
					return fmt.Errorf("accept alice-bob: %w", err)
				}
			}
			pending, err := convs.Request(ctx, alice.ID, carol.ID)
			if err != nil {
				return fmt.Errorf("request alice-carol: %w", err)
			}

			group, err := ensureDemoGroup(ctx, st, alice.ID, bob.ID, carol.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, u := range users {
				token, err := application.Auth().IssueToken(u.ID, u.Name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "user %-6s id=%s phone=%s\n  token=%s\n", u.Name, u.ID, u.PhoneNumber, token)
			}
			fmt.Fprintf(out, "conversation alice-bob   id=%s status=%s\n", accepted.ID, accepted.Status)
			fmt.Fprintf(out, "conversation alice-carol id=%s status=%s\n", pending.ID, pending.Status)
			fmt.Fprintf(out, "group demo id=%s members=%d\n", group.ID, len(group.Members))
			return nil
		},
	}
}

func ensureUser(ctx context.Context, st store.UserStore, name, phone string) (*store.User, error) {
	if u, err := st.GetUserByPhone(ctx, phone); err == nil {
		return u, nil
	}
	hash, err := auth.HashPassword(demoPassword)
	if err != nil {
		return nil, err
	}
	u, err := st.CreateUser(ctx, name, "+1", phone, hash)
	if err != nil {
		return nil, fmt.Errorf("create user %s: %w", name, err)
	}
	return u, nil
}

// ensureDemoGroup creates the demo group once; later runs return it unchanged.
func ensureDemoGroup(ctx context.Context, st store.GroupStore, ownerID string, memberIDs ...string) (*store.Group, error) {
	g, err := st.FindGroupByID(ctx, demoGroupID)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("find demo group: %w", err)
	}

	g = &store.Group{
		ID:      demoGroupID,
		Name:    "demo",
		OwnerID: ownerID,
		Members: []store.GroupMember{{UserID: ownerID, Role: store.GroupRoleOwner}},
	}
	for _, id := range memberIDs {
		g.Members = append(g.Members, store.GroupMember{UserID: id})
	}
	if err := st.SaveGroup(ctx, g); err != nil {
		return nil, fmt.Errorf("save group: %w", err)
	}
	return g, nil
}
