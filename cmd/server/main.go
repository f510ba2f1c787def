package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"railworld/internal/persistence/indexdb"
	persistlog "railworld/internal/persistence/log"
	"railworld/internal/persistence/snapshot"
	"railworld/internal/sim/heightfield"
	"railworld/internal/sim/tuning"
	"railworld/internal/sim/world"
	"railworld/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		seed       = flag.Int64("seed", 0, "noise seed override (0 keeps the tuning value)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite runtime index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	_ = os.MkdirAll(*dataDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}
	if *seed != 0 {
		tune.Seed = *seed
	}

	// Optional read-model index; never affects sim determinism.
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index: upsert tuning: %v", err)
		}
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = snapshot.Latest(filepath.Join(*dataDir, "snapshots"))
	}

	var w *world.World
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		w, err = world.New(worldConfigFromSnapshot(snap, tune))
		if err != nil {
			logger.Fatalf("world: %v", err)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
	} else {
		w, err = world.New(worldConfigFromTuning(tune))
		if err != nil {
			logger.Fatalf("world: %v", err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	worldCtx, worldCancel := context.WithCancel(context.Background())
	defer worldCancel()

	tickLog := persistlog.NewTickLogger(*dataDir)
	defer tickLog.Close()
	w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})

	// Snapshot writer.
	snapDir := filepath.Join(*dataDir, "snapshots")
	snapCh := make(chan world.Snapshot, 2)
	w.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-worldCtx.Done():
				return
			case snap := <-snapCh:
				writeSnapshot(snapDir, snap, idx, logger)
			}
		}
	}()

	go func() {
		if err := w.Run(worldCtx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	obs := observer.NewServer(w, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/status", statusHandler(w))
	mux.HandleFunc("/v1/observer/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obs.WSHandler())
	mux.HandleFunc("/v1/admin/noise", noiseHandler(w))
	mux.HandleFunc("/v1/admin/snapshot", adminSnapshotHandler(w, snapDir, idx, logger))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")

	// Final snapshot before the world loop stops.
	resp := make(chan world.Snapshot, 1)
	select {
	case w.Admin() <- world.SnapshotRequest{Resp: resp}:
		select {
		case snap := <-resp:
			writeSnapshot(snapDir, snap, idx, logger)
		case <-time.After(2 * time.Second):
			logger.Printf("final snapshot timed out")
		}
	default:
		logger.Printf("final snapshot skipped: world not accepting requests")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	worldCancel()
}

func worldConfigFromTuning(tune tuning.Tuning) world.Config {
	return world.Config{
		TickRateHz:    tune.TickRateHz,
		PhysicsRateHz: tune.PhysicsRateHz,

		Seed:           tune.Seed,
		NoiseAmplitude: tune.NoiseAmplitude,
		NoiseScale:     tune.NoiseScale,
		WaterLevel:     tune.WaterLevel,

		ChunkSize:    tune.ChunkSize,
		LoadRadius:   tune.LoadRadius,
		VertexStride: tune.VertexStride,
		GenWorkers:   tune.GenWorkers,

		NodeLength:     tune.NodeLength,
		MaxTurnAngle:   tune.MaxTurnAngle,
		RouteClearance: tune.RouteClearance,

		TrackSmoothing:    tune.TrackSmoothing,
		TrackSubdivisions: tune.TrackSubdivisions,
		TrackClearance:    tune.TrackClearance,

		Train: world.TrainConfig{
			BogieMass:        tune.Train.BogieMass,
			WagonMass:        tune.Train.WagonMass,
			BogieDistance:    tune.Train.BogieDistance,
			StaticFriction:   tune.Train.StaticFriction,
			KineticFriction:  tune.Train.KineticFriction,
			TractiveForce:    tune.Train.TractiveForce,
			BrakingForce:     tune.Train.BrakingForce,
			SpawnT:           tune.Train.SpawnT,
			TCoefficient:     tune.Train.TCoefficient,
			ConstraintGain:   tune.Train.ConstraintGain,
			WagonHeightShift: tune.Train.WagonHeightShift,
		},

		SnapshotEveryTicks: tune.SnapshotEveryTicks,
	}
}

// worldConfigFromSnapshot keeps the deterministic parameters from the
// snapshot; operational settings (workers, snapshot cadence) come from
// the current tuning.
func worldConfigFromSnapshot(snap snapshot.SnapshotV1, tune tuning.Tuning) world.Config {
	cfg := worldConfigFromTuning(tune)

	cfg.TickRateHz = snap.TickRateHz
	cfg.PhysicsRateHz = snap.PhysicsRateHz
	cfg.Seed = snap.Seed
	cfg.NoiseAmplitude = snap.NoiseAmplitude
	cfg.NoiseScale = snap.NoiseScale
	cfg.WaterLevel = snap.WaterLevel
	cfg.ChunkSize = snap.ChunkSize
	cfg.LoadRadius = snap.LoadRadius
	cfg.VertexStride = snap.VertexStride
	cfg.NodeLength = snap.NodeLength
	cfg.MaxTurnAngle = snap.MaxTurnAngle
	cfg.RouteClearance = snap.RouteClearance
	cfg.TrackSmoothing = snap.TrackSmoothing
	cfg.TrackSubdivisions = snap.TrackSubdivisions
	cfg.TrackClearance = snap.TrackClearance
	return cfg
}

func writeSnapshot(snapDir string, snap world.Snapshot, idx *indexdb.SQLiteIndex, logger *log.Logger) {
	path := filepath.Join(snapDir, fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		logger.Printf("snapshot write: %v", err)
		return
	}
	logger.Printf("snapshot written: %s", filepath.Base(path))
	if idx != nil {
		idx.RecordSnapshot(path, snap)
	}
}

func statusHandler(w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		resp := make(chan world.StatusReport, 1)
		select {
		case w.StatusRequests() <- resp:
		case <-time.After(time.Second):
			http.Error(rw, "world busy", http.StatusServiceUnavailable)
			return
		}
		select {
		case rep := <-resp:
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(rep)
		case <-time.After(time.Second):
			http.Error(rw, "world busy", http.StatusServiceUnavailable)
		}
	}
}

func noiseHandler(w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var settings heightfield.Settings
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			http.Error(rw, "bad settings", http.StatusBadRequest)
			return
		}
		resp := make(chan error, 1)
		select {
		case w.NoiseSwap() <- world.NoiseSwapRequest{Settings: settings, Resp: resp}:
		case <-time.After(time.Second):
			http.Error(rw, "world busy", http.StatusServiceUnavailable)
			return
		}
		select {
		case err := <-resp:
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			rw.WriteHeader(http.StatusNoContent)
		case <-time.After(2 * time.Second):
			http.Error(rw, "world busy", http.StatusServiceUnavailable)
		}
	}
}

func adminSnapshotHandler(w *world.World, snapDir string, idx *indexdb.SQLiteIndex, logger *log.Logger) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		resp := make(chan world.Snapshot, 1)
		select {
		case w.Admin() <- world.SnapshotRequest{Resp: resp}:
		case <-time.After(time.Second):
			http.Error(rw, "world busy", http.StatusServiceUnavailable)
			return
		}
		select {
		case snap := <-resp:
			writeSnapshot(snapDir, snap, idx, logger)
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(map[string]any{"tick": snap.Header.Tick})
		case <-time.After(2 * time.Second):
			http.Error(rw, "world busy", http.StatusServiceUnavailable)
		}
	}
}

// multiTickLogger fans tick entries out to the JSONL log and the
// sqlite index. A nil index is skipped.
type multiTickLogger struct {
	a *persistlog.TickLogger
	b *indexdb.SQLiteIndex
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return m.a.WriteTick(entry)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
