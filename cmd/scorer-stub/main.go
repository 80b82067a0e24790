package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/config"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/scorer"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/telemetry"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

// #region main
func main() {
	env, err := config.LoadEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	addr := flag.String("addr", env.ScorerAddr, "listen address")
	labelsPath := flag.String("labels", env.LabelsPath, "vocabulary labels JSON; sets the score width")
	seed := flag.Uint("seed", 1, "seed for the per-token base hazards")
	low := flag.Float64("low", -12, "lowest base log-hazard per day")
	high := flag.Float64("high", -8, "highest base log-hazard per day")
	slope := flag.Float64("slope", 0.05, "log-hazard increase per year of age")
	flag.Parse()

	v, err := vocab.LoadLabelsFile(*labelsPath)
	if err != nil {
		log.Fatalf("labels: %v", err)
	}
	if *low > *high {
		fmt.Fprintln(os.Stderr, "usage: --low must not exceed --high")
		os.Exit(2)
	}

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("listen %s: %v", *addr, err)
	}

	srv := scorer.NewServer(scorer.NewSynthetic(v.Size(), uint32(*seed), *low, *high, *slope))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, env.OTelEndpoint, "delphi-scorer-stub")
	if err != nil {
		log.Printf("[OTEL] tracing disabled: %v", err)
	}
	defer shutdown(context.Background())

	go func() {
		<-ctx.Done()
		log.Println("[STUB] shutting down")
		srv.GracefulStop()
	}()

	log.Printf("[STUB] synthetic scorer on %s (%d tokens)", lis.Addr(), v.Size())
	if err := srv.Serve(lis); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// #endregion main
