// Command agentgraphctl is a small diagnostic CLI: it loads engine
// config, deploys a design graph read from a JSON file, and prints the
// resulting running-agent list and any bound knowledge graphs. It
// exists to exercise the engine's deploy path from a terminal without
// standing up the full HTTP surface.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/beezlebug/agentgraph/config"
	"github.com/beezlebug/agentgraph/design"
	"github.com/beezlebug/agentgraph/execbuild"
	"github.com/beezlebug/agentgraph/eventbus"
	"github.com/beezlebug/agentgraph/internal/cli"
	"github.com/beezlebug/agentgraph/internal/logx"
	"github.com/beezlebug/agentgraph/memorystream"
	"github.com/beezlebug/agentgraph/runtime"
	"github.com/beezlebug/agentgraph/scheduler"
	"github.com/beezlebug/agentgraph/storage"
	"github.com/beezlebug/agentgraph/storage/postgres"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"
)

func main() {
	graphPath := flag.String("graph", "", "path to a JSON-encoded design graph")
	projectID := flag.String("project", "diagnostic", "project id to deploy under")
	flag.Parse()

	if *graphPath == "" {
		fmt.Fprintln(os.Stderr, "usage: agentgraphctl -graph <design.json> [-project <id>]")
		os.Exit(2)
	}

	log := logx.Default()
	cfg, err := config.Load()
	if err != nil {
		log.Error("loading config: %v", err)
		os.Exit(1)
	}

	ctx := context.Background()
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		log.Error("opening storage: %v", err)
		os.Exit(1)
	}
	defer backend.Close()

	data, err := os.ReadFile(*graphPath)
	if err != nil {
		log.Error("reading graph file: %v", err)
		os.Exit(1)
	}
	var g design.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		log.Error("parsing graph file: %v", err)
		os.Exit(1)
	}

	bus := eventbus.New(log)
	embedder := memorystream.NewOpenAIEmbedder(cfg.DefaultLLMAPIKey, cfg.DefaultLLMAPIURL, openai.EmbeddingModel(cfg.EmbeddingModel))
	builder := execbuild.New(backend, bus, embedder)
	sched := scheduler.New(cfg.SchedulerTickInterval, log)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		sched.SetDistLock(scheduler.NewDistLock(redisClient, 0))
		log.Info("distributed scheduler lock enabled against %s", cfg.RedisAddr)
	}
	sched.Start(ctx)
	defer sched.Stop()

	rt := runtime.New(builder, sched, log, func(_, sender, content string) {
		fmt.Printf("[%s] %s\n", sender, content)
	})

	if err := rt.Deploy(ctx, &g, *projectID); err != nil {
		log.Error("deploying graph: %v", err)
		os.Exit(1)
	}

	fmt.Println(cli.RenderRunningAgents(rt.RunningAgents()))
	for name, kg := range rt.RunningKnowledgeGraphs() {
		fmt.Println(cli.RenderKnowledgeGraph(name, kg))
	}
}

func openBackend(ctx context.Context, cfg config.Config) (storage.Backend, error) {
	if cfg.PostgresDSN != "" {
		return postgres.New(ctx, cfg.PostgresDSN)
	}
	return storage.NewSQLite(cfg.StoragePath)
}
