package main

import (
	"io"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/argus-labs/kamisync/pkg/kamiden"
	"github.com/argus-labs/kamisync/pkg/kamiden/kamidenv1"
)

type messageLine struct {
	Type      string `json:"type"`
	ID        uint64 `json:"id"`
	Kind      string `json:"kind,omitempty"`
	Room      string `json:"room,omitempty"`
	Sender    string `json:"sender,omitempty"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type feedLine struct {
	Type        string          `json:"type"`
	BlockNumber uint64          `json:"blockNumber"`
	Events      []feedEventLine `json:"events"`
}

type feedEventLine struct {
	Kind   string `json:"kind"`
	Entity string `json:"entity"`
	Data   string `json:"data,omitempty"`
}

func newFeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "feed",
		Short: "Follow the kamiden live feed and print it as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := kamiden.LoadConfig()
			if err != nil {
				return err
			}
			client, err := kamiden.Dial(cfg,
				kamiden.WithLogger(a.tel.GetLogger("kamiden")),
				kamiden.WithoutAutoStart(),
			)
			if err != nil {
				return err
			}

			p := newLinePrinter(cmd.OutOrStdout())
			client.OnMessage(func(msg *kamidenv1.Message) { p.print(toMessageLine(msg)) })
			client.OnFeed(func(feed *kamidenv1.Feed) { p.print(toFeedLine(feed)) })

			client.Start(cmd.Context())
			<-client.Done()
			err = client.Err()
			if stopErr := client.Stop(); err == nil {
				err = stopErr
			}
			return err
		},
	}
}

// linePrinter writes one JSON document per line.
type linePrinter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newLinePrinter(w io.Writer) *linePrinter {
	return &linePrinter{enc: json.NewEncoder(w)}
}

func (p *linePrinter) print(v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.enc.Encode(v)
}

func toMessageLine(msg *kamidenv1.Message) messageLine {
	line := messageLine{
		Type:      "message",
		ID:        msg.ID,
		Kind:      msg.Kind,
		Room:      msg.Room,
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
	}
	if len(msg.Sender) > 0 {
		line.Sender = hexutil.Encode(msg.Sender)
	}
	return line
}

func toFeedLine(feed *kamidenv1.Feed) feedLine {
	line := feedLine{Type: "feed", BlockNumber: feed.BlockNumber, Events: []feedEventLine{}}
	for _, e := range feed.Events {
		ev := feedEventLine{Kind: e.Kind, Entity: hexutil.Encode(e.Entity)}
		if len(e.Data) > 0 {
			ev.Data = hexutil.Encode(e.Data)
		}
		line.Events = append(line.Events, ev)
	}
	return line
}
