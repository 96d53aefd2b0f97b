package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/core"
	svc "github.com/joseph-ayodele/contracts-tracker/internal/server"
)

func main() {
	var (
		file    = flag.String("file", "", "contract to extract (required)")
		format  = flag.String("format", "", "format hint: PDF, IMAGE or DOC (defaults to the extension)")
		addr    = flag.String("addr", "", "extract through a running contractsd gRPC endpoint instead of locally")
		timeout = flag.Duration("timeout", 2*time.Minute, "overall deadline")
	)
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: runextract --file <path> [--format PDF|IMAGE|DOC] [--addr host:port]")
		os.Exit(2)
	}
	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var out []byte
	if *addr != "" {
		out, err = remote(ctx, *addr, data, filepath.Base(*file), *format)
	} else {
		out, err = local(ctx, data, filepath.Base(*file), *format)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func local(ctx context.Context, data []byte, name, format string) ([]byte, error) {
	cfg, err := common.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	logger := common.NewLogger(os.Stderr, cfg.Log)

	pipe, modelVersion, err := svc.BuildPipeline(cfg, logger, nil)
	if err != nil {
		return nil, err
	}
	processor := core.NewProcessor(logger, pipe, core.WithModelVersion(modelVersion))
	outcome, err := processor.Process(ctx, core.Request{Data: data, Name: name, FormatHint: format})
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(outcome.Result, "", "  ")
}

func remote(ctx context.Context, addr string, data []byte, name, format string) ([]byte, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	res, header, err := svc.NewExtractionClient(conn).Extract(ctx, data, name, format)
	if err != nil {
		return nil, err
	}
	if ids := header.Get(svc.MDJobID); len(ids) > 0 {
		fmt.Fprintf(os.Stderr, "job_id=%s\n", ids[0])
	}
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(res)
}
