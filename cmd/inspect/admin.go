package main

import (
	"context"
	"fmt"
	"gym-chat/infrastructure/grpc/client"
	"time"

	"github.com/gookit/color"
	"github.com/urfave/cli/v3"
)

const adminTimeout = 10 * time.Second

func withAdmin(f *flags, fn func(ctx context.Context, admin *client.AdminClient) error) func(context.Context, *cli.Command) error {
	return func(ctx context.Context, _ *cli.Command) error {
		if f.token == "" {
			return fmt.Errorf("an admin token is required (--token or ADMIN_TOKEN)")
		}
		admin, err := client.NewAdminClient(f.addr, f.token)
		if err != nil {
			return err
		}
		defer admin.Close()

		ctx, cancel := context.WithTimeout(ctx, adminTimeout)
		defer cancel()
		return fn(ctx, admin)
	}
}

func sweepCmd(f *flags) *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Remove expired non-permanent messages now",
		Action: withAdmin(f, func(ctx context.Context, admin *client.AdminClient) error {
			removed, err := admin.ExpirySweep(ctx)
			if err != nil {
				return err
			}
			color.Green.Printf("%d expired messages removed\n", removed)
			return nil
		}),
	}
}

func broadcastCmd(f *flags) *cli.Command {
	var title, body, category string
	return &cli.Command{
		Name:  "broadcast",
		Usage: "Send a system notification to every connected client",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Required: true, Destination: &title},
			&cli.StringFlag{Name: "body", Destination: &body},
			&cli.StringFlag{Name: "category", Value: "info", Destination: &category},
		},
		Action: withAdmin(f, func(ctx context.Context, admin *client.AdminClient) error {
			delivered, err := admin.BroadcastSystemNotification(ctx, title, body, category)
			if err != nil {
				return err
			}
			color.Green.Printf("notification delivered to %d connections\n", delivered)
			return nil
		}),
	}
}

func presenceCmd(f *flags) *cli.Command {
	var userID string
	return &cli.Command{
		Name:  "presence",
		Usage: "Count the live connections of a user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true, Destination: &userID},
		},
		Action: withAdmin(f, func(ctx context.Context, admin *client.AdminClient) error {
			count, err := admin.Presence(ctx, userID)
			if err != nil {
				return err
			}
			if count == 0 {
				color.Yellow.Printf("%s is offline\n", userID)
				return nil
			}
			color.Green.Printf("%s is online on %d devices\n", userID, count)
			return nil
		}),
	}
}

func unreadCmd(f *flags) *cli.Command {
	var userID string
	return &cli.Command{
		Name:  "unread",
		Usage: "Count the unread messages of a user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true, Destination: &userID},
		},
		Action: withAdmin(f, func(ctx context.Context, admin *client.AdminClient) error {
			count, err := admin.UnreadCount(ctx, userID)
			if err != nil {
				return err
			}
			fmt.Printf("%s has %d unread messages\n", userID, count)
			return nil
		}),
	}
}
