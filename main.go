/*
Evogrid is an evolutionary cellular automaton: a rectangular world of air,
falling food and programmable agents whose behaviour is dictated by a fixed
64-byte genome, advanced in synchronous ticks by a double-buffered parallel
kernel. This binary wires the engine to its boundary service: renderers are
pushed packed snapshot frames over a websocket, and read single cells and
update config fields over plain routes; everything else stays inside the sim
package.
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"evogrid/server"
	"evogrid/sim"
)

var (
	dbg        *bool
	nworkers   *int
	host       *string
	port       *string
	configPath *string
	seed       *int64
	stepEvery  *time.Duration
)

func init() {
	dbg = flag.Bool("debug", false, "debug logging")
	nworkers = flag.Int("nworkers", runtime.NumCPU(), "number of kernel worker routines")
	host = flag.String("host", "", "the host ip")
	port = flag.String("port", "8080", "the host port")
	configPath = flag.String("config", "./config.yaml", "simulation config file")
	seed = flag.Int64("seed", 0, "world seed; 0 derives one from the clock")
	stepEvery = flag.Duration("step", 50*time.Millisecond, "tick interval")
	flag.Parse()
}

func runApp(log *logrus.Logger) error {
	cfg, err := sim.FromYaml(*configPath)
	if err != nil {
		return err
	}

	simulator, err := sim.New(cfg, *nworkers)
	if err != nil {
		return err
	}

	worldSeed := *seed
	if worldSeed == 0 {
		worldSeed = time.Now().UnixNano()
	}
	simulator.Reset(sim.Setup{Seed: worldSeed})
	log.WithFields(logrus.Fields{
		"seed":   worldSeed,
		"width":  cfg.WorldWidth,
		"height": cfg.WorldHeight,
		"agents": simulator.ActiveCount(),
	}).Info("world seeded")

	appCtx, appCancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer appCancel()

	srv := server.New(*host+":"+*port, simulator, *stepEvery, log)
	return srv.Serve(appCtx)
}

func main() {
	log := logrus.New()
	if *dbg {
		log.SetLevel(logrus.DebugLevel)
	}
	if err := runApp(log); err != nil {
		log.Fatal(err)
	}
}
