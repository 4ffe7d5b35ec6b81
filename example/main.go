package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/meikuraledutech/chatgraph"
	"github.com/meikuraledutech/chatgraph/cache"
	"github.com/meikuraledutech/chatgraph/format"
	"github.com/meikuraledutech/chatgraph/logger"
	"github.com/meikuraledutech/chatgraph/memstore"
	"github.com/meikuraledutech/chatgraph/postgres"
	"github.com/meikuraledutech/chatgraph/service"
)

func main() {
	ctx := context.Background()

	// Postgres when DATABASE_URL is set, otherwise everything stays in memory.
	var store chatgraph.Store = memstore.New()
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pg, err := postgres.Connect(ctx, dbURL)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		store = pg
	}
	defer store.Close()

	// 1. Create tables
	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Println("schema created")

	svc := service.New(store, cache.NewMemory(), format.Default(), logger.Nop())

	// ── Dataset with one branching item ───────────────────────────────
	// The user asks once and two alternative replies follow.
	greeting := chatgraph.Item{
		Name: "greeting",
		Nodes: []chatgraph.Node{
			{Role: chatgraph.RoleSystem, Positive: "You are a helpful assistant.", To: []int{1}},
			{Role: chatgraph.RoleUser, Positive: "help", To: []int{2, 3}},
			{Role: chatgraph.RoleAssistant, Positive: "hi", Negative: "go away"},
			{Role: chatgraph.RoleAssistant, Positive: "hello", To: []int{4}},
			{Role: chatgraph.RoleUser, Positive: "what can you do?", To: []int{5}},
			{Role: chatgraph.RoleAssistant, Positive: "Answer questions."},
		},
	}
	if err := svc.CreateDataset(ctx, &chatgraph.Dataset{
		Name:  "demo",
		Items: []chatgraph.Item{greeting},
	}); err != nil {
		log.Fatalf("create dataset: %v", err)
	}
	fmt.Println("dataset created")

	// ── Expand ────────────────────────────────────────────────────────
	all, err := chatgraph.Expand(greeting)
	if err != nil {
		log.Fatalf("expand: %v", err)
	}
	fmt.Printf("every assistant turn: %d interactions\n", len(all))

	leaves, err := chatgraph.ExpandWith(greeting, chatgraph.EmitLeaves)
	if err != nil {
		log.Fatalf("expand: %v", err)
	}
	fmt.Printf("leaves only: %d interactions\n", len(leaves))

	// ── Import ────────────────────────────────────────────────────────
	records := []byte(`{"instruction": "2+2?", "output": "4", "history": [["hi", "hello"]]}
{"instruction": "capital of France?", "output": "Paris"}`)
	n, err := svc.Import(ctx, "demo", "alpaca", records)
	if err != nil {
		log.Fatalf("import: %v", err)
	}
	names, _ := svc.ListItems(ctx, "demo")
	fmt.Printf("imported %d items\n", n)
	printJSON(names)

	// ── Export + download, once per format ────────────────────────────
	for _, a := range svc.Formats() {
		res, err := svc.Export(ctx, "demo", a.Name(), format.EncodeOptions{})
		if err != nil {
			log.Fatalf("export %s: %v", a.Name(), err)
		}
		entry, err := svc.Download(ctx, res.ID)
		if err != nil {
			log.Fatalf("download %s: %v", a.Name(), err)
		}
		fmt.Printf("── %s (%s)\n%s\n", a.DisplayName(), entry.Filename, entry.Payload)
	}

	// ── Structural errors fail the export ─────────────────────────────
	broken := chatgraph.Item{Name: "broken", Nodes: []chatgraph.Node{
		{Role: chatgraph.RoleSystem, To: []int{1}},
		{Role: chatgraph.RoleUser, Positive: "anyone there?"},
	}}
	if err := svc.CreateItem(ctx, "demo", broken); err != nil {
		log.Fatalf("create item: %v", err)
	}
	if _, err := svc.Export(ctx, "demo", "chatml", format.EncodeOptions{}); err != nil {
		fmt.Println("export rejected:", err)
	}

	if err := svc.DeleteDataset(ctx, "demo"); err != nil {
		log.Fatalf("delete dataset: %v", err)
	}
	fmt.Println("dataset deleted")
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
