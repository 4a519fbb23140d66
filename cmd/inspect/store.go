package main

import (
	"context"
	"fmt"
	"gym-chat/repositories"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
)

// openStore opens badger read-only so a running server keeps its lock.
func openStore(path string) (*repositories.MessageRepository, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return repositories.NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelError)), nil
}

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func conversationsCmd(f *flags) *cli.Command {
	var userID string
	return &cli.Command{
		Name:  "conversations",
		Usage: "List the conversations of a user, most recent first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true, Destination: &userID},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			store, err := openStore(f.dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			summaries, err := store.ListConversations(ctx, userID)
			if err != nil {
				return err
			}
			table := newTable(c.Root().Writer, "Partner", "Unread", "Last At", "Last Message")
			for _, s := range summaries {
				table.Append([]string{
					s.PartnerID,
					fmt.Sprint(s.UnreadCount),
					s.LastMessage.CreatedAt.Format(time.DateTime),
					truncate(s.LastMessage.Body, 60),
				})
			}
			table.Render()
			return nil
		},
	}
}

func messagesCmd(f *flags) *cli.Command {
	var userID, otherID string
	var limit int
	return &cli.Command{
		Name:  "messages",
		Usage: "Print the history between two users, oldest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true, Destination: &userID},
			&cli.StringFlag{Name: "with", Aliases: []string{"w"}, Required: true, Destination: &otherID},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 200, Destination: &limit},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			store, err := openStore(f.dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			page, err := store.GetHistory(ctx, userID, otherID, limit, nil)
			if err != nil {
				return err
			}
			table := newTable(c.Root().Writer, "At", "From", "To", "Read", "Permanent", "Body")
			for _, m := range page.Messages {
				table.Append([]string{
					m.CreatedAt.Format(time.DateTime),
					m.SenderID,
					m.ReceiverID,
					fmt.Sprint(m.IsRead()),
					fmt.Sprint(m.IsPermanent),
					truncate(m.Body, 60),
				})
			}
			table.Render()
			if page.NextCursor != nil {
				fmt.Fprintf(c.Root().Writer, "\nolder messages exist before %s\n", page.NextCursor.String())
			}
			return nil
		},
	}
}

func rawCmd(f *flags) *cli.Command {
	var prefix string
	return &cli.Command{
		Name:  "raw",
		Usage: "Dump raw badger keys under a prefix",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "prefix", Value: "msg:", Destination: &prefix},
		},
		Action: func(_ context.Context, c *cli.Command) error {
			opts := badger.DefaultOptions(f.dbPath).WithReadOnly(true).WithBypassLockGuard(true).WithLogger(nil)
			db, err := badger.Open(opts)
			if err != nil {
				return err
			}
			defer db.Close()

			table := newTable(c.Root().Writer, "Key", "Type", "Detail")
			err = db.View(func(txn *badger.Txn) error {
				it := txn.NewIterator(badger.DefaultIteratorOptions)
				defer it.Close()
				for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
					key := string(it.Item().Key())
					val, err := it.Item().ValueCopy(nil)
					if err != nil {
						return err
					}
					kind, detail := repositories.DescribeEntry(key, val)
					table.Append([]string{key, kind, detail})
				}
				return nil
			})
			if err != nil {
				return err
			}
			table.Render()
			return nil
		},
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
