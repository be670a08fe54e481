package main

import (
	"chat-sync/domain"
	"chat-sync/internal"
	"chat-sync/repositories"
	"chat-sync/runtime"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"./data/chat-sync"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"WARN"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run prints one line per room stored in the embedded database.
// The gateway must be stopped: badger holds an exclusive lock on its directory.
func run() error {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	dbPath := flag.String("db", config.BadgerFilepath, "Path to badger DB")
	participant := flag.String("participant", "", "Only rooms this participant belongs to")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithReadOnly(true).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return fmt.Errorf("error while opening Badger: %w", err)
	}
	defer db.Close()

	store := repositories.NewBadgerStore(db, logs.GetLoggerFromString(config.LogLevel), runtime.NewRegistry())
	docs, err := store.Documents(context.Background())
	if err != nil {
		return err
	}
	rows := lo.Filter(internal.RoomRows(docs), func(row internal.InspectRow, _ int) bool {
		return *participant == "" || lo.Contains(strings.Split(row.Room, domain.RoomSeparator), *participant)
	})

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Room", "Created", "Typing", "Messages", "Skipped", "Last", "Last message"})
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

	for _, row := range rows {
		table.Append([]string{
			row.Room,
			row.CreatedAt,
			row.Typing,
			strconv.Itoa(row.Messages),
			strconv.Itoa(row.Skipped),
			row.LastAt,
			row.LastMessage,
		})
	}
	table.Render()
	fmt.Printf("\n%d room(s)\n", len(rows))
	return nil
}
