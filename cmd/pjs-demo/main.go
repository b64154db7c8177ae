// Command pjs-demo streams a JSON document through a producer/consumer
// pair over an in-process pipe, printing each frame and render event as it
// arrives. It is a demonstration harness, not a transport: real deployments
// drive ProducerSession/ConsumerSession from a network listener instead
// (§1 Non-goals exclude transport/auth from the core).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"github.com/pjsproto/pjs"
	"github.com/pjsproto/pjs/frame"
	"github.com/pjsproto/pjs/value"
)

func init() {
	// Optional: put config overrides in .env and this will load them.
	godotenv.Load()
}

func main() {
	configPath := flag.String("config", "", "path to a PJS session config YAML file (optional)")
	inputPath := flag.String("input", "", "path to a JSON document to stream (defaults to a built-in sample)")
	flag.Parse()

	cfg := pjs.DefaultConfig()
	if *configPath != "" {
		loaded, err := pjs.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pjs-demo: loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	doc, err := loadDocument(*inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pjs-demo: loading input: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, doc); err != nil {
		fmt.Fprintf(os.Stderr, "pjs-demo: %v\n", err)
		os.Exit(1)
	}
}

func loadDocument(path string) (value.Value, error) {
	var data []byte
	var err error
	if path == "" {
		data = []byte(sampleDocument)
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}
	return value.Unmarshal(data)
}

const sampleDocument = `{
	"id": 42,
	"name": "Ada Lovelace",
	"bio": "Wrote the first published algorithm for a computing machine.",
	"metadata": {"created_at": "1843-01-01", "tags": ["mathematics", "computing"]},
	"analytics": {"page_views": 10492, "trace_id": "abc123"}
}`

// run builds a producer for doc, pipes its frames to a consumer over an
// in-process io.Pipe using the stdio-style transport, and prints each
// frame and render event as it arrives.
func run(cfg pjs.Config, doc value.Value) error {
	manager := pjs.NewManager(cfg)
	ctx := context.Background()

	producer, err := manager.OpenProducer(ctx, doc)
	if err != nil {
		return fmt.Errorf("opening producer: %w", err)
	}
	consumer, err := manager.OpenConsumer(ctx)
	if err != nil {
		return fmt.Errorf("opening consumer: %w", err)
	}

	pr, pw := io.Pipe()
	sender := newStdioTransport(pw, pr)
	defer sender.Close()

	done := make(chan error, 1)
	go func() {
		done <- pumpOverTransport(producer, consumer, sender)
	}()

	return <-done
}

// pumpOverTransport serves every frame from producer, round-trips it
// through the transport's encode/decode path, and ingests it into
// consumer — exercising the same wire format a real network transport
// would use, without opening a socket.
func pumpOverTransport(producer *pjs.ProducerSession, consumer *pjs.ConsumerSession, t *stdioTransport) error {
	recvErrs := make(chan error, 1)
	go func() {
		for {
			f, raw, err := t.Receive()
			if err != nil {
				recvErrs <- err
				return
			}
			events, violations, err := consumer.Ingest(f, raw)
			if err != nil {
				recvErrs <- err
				return
			}
			for _, v := range violations {
				fmt.Printf("  ! violation: %s at %s\n", v.Kind, v.Path)
			}
			for _, e := range events {
				fmt.Printf("  -> %s %s (priority %d)\n", e.Kind, e.Path, e.Priority)
			}
			if _, ok := f.(*frame.CompleteFrame); ok {
				recvErrs <- nil
				return
			}
		}
	}()

	for !producer.Done() {
		f, ok, err := producer.NextFrame()
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		fmt.Printf("sent %s (seq %d, priority %d)\n", f.Type(), f.Envelope().Seq, f.Envelope().Priority)
		if err := t.Send(f); err != nil {
			return err
		}
	}

	return <-recvErrs
}
