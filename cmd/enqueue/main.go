// File: cmd/enqueue/main.go
//
// Small producer for local runs and smoke tests: pushes one upload event
// onto the queue the worker consumes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"strings"
	"time"

	"photo-enhance-pipeline/internal/config"
	"photo-enhance-pipeline/internal/infra/queue"

	"github.com/rs/zerolog"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	kind := flag.String("kind", queue.KindSubmit, "event kind: submit | job | batch")
	userID := flag.String("user", "local-user", "user id")
	jobID := flag.String("job", "", "job id (kind=job)")
	key := flag.String("key", "", "uploaded object key (kind=submit|job)")
	keys := flag.String("keys", "", "comma-separated object keys (kind=batch)")
	prompt := flag.String("prompt", "", "prompt (kind=submit|job) or shared prompt (kind=batch)")
	prompts := flag.String("prompts", "", "comma-separated per-object prompts (kind=batch)")
	locale := flag.String("locale", "", "user locale")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	event := &queue.UploadEvent{Kind: *kind, UserID: *userID, Locale: *locale}
	switch *kind {
	case queue.KindSubmit:
		if *key == "" {
			log.Fatalf("-key is required for kind=submit")
		}
		event.ObjectKey = *key
		event.Prompt = *prompt
	case queue.KindJob:
		if *jobID == "" || *key == "" {
			log.Fatalf("-job and -key are required for kind=job")
		}
		event.JobID = *jobID
		event.ObjectKey = *key
		event.Prompt = *prompt
	case queue.KindBatch:
		if *keys == "" {
			log.Fatalf("-keys is required for kind=batch")
		}
		event.ObjectKeys = splitList(*keys)
		event.SharedPrompt = *prompt
		if *prompts != "" {
			event.Prompts = splitList(*prompts)
			if len(event.Prompts) != len(event.ObjectKeys) {
				log.Fatalf("-prompts must match -keys: %d prompts for %d keys", len(event.Prompts), len(event.ObjectKeys))
			}
		}
	default:
		log.Fatalf("unknown kind %q", *kind)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	q, err := queue.NewRedisQueue(ctx, queue.RedisOptions{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Queue:    cfg.Redis.Queue,
	}, zerolog.Nop())
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer q.Close()

	if err := q.Enqueue(ctx, event); err != nil {
		log.Fatalf("enqueue: %v", err)
	}

	b, _ := json.Marshal(event)
	log.Printf("enqueued onto %s: %s", cfg.Redis.Queue, b)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
