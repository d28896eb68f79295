package main

import (
	"context"
	"log"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rl1809/grocery-inventory/internal/adapter/handler"
	"github.com/rl1809/grocery-inventory/internal/core/store"
	"github.com/rl1809/grocery-inventory/internal/stress"
)

const (
	grpcAddr = "localhost:50051"
	workers  = 16
	moves    = 500
	timeout  = 2 * time.Minute
)

// Drives a running `grocery serve` on the default layout over gRPC.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to connect grpc: %v", err)
	}
	defer conn.Close()

	opts := stress.DefaultOptions()
	opts.Workers = workers
	opts.Moves = moves
	opts.Seed = uint64(time.Now().UnixNano())

	res, err := stress.Run(ctx, stress.GRPCTarget{Client: handler.NewShopClient(conn)}, store.DefaultLayout(), opts, nil)
	if err != nil {
		log.Fatalf("stress run failed: %v", err)
	}
	res.Report(os.Stdout)

	if res.Failed+res.Moved+res.RolledBack != int32(workers*moves) {
		log.Printf("FAIL: expected %d moves, got %d", workers*moves, res.Failed+res.Moved+res.RolledBack)
		os.Exit(1)
	}
	log.Println("PASS: every move answered")
}
