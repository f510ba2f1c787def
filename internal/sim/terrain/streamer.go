package terrain

import "railworld/internal/geom"

type genJob struct {
	id     uint64
	coord  ChunkCoord
	offset geom.Vec2
	// sample travels with the job so a sampler swap never races with
	// an in-flight generation.
	sample Sampler
}

type genResult struct {
	id     uint64
	coord  ChunkCoord
	offset geom.Vec2
	mesh   *geom.Mesh
}

// Streamer maintains the loaded chunk set around a viewpoint. All
// methods must be called from a single goroutine; only the generation
// pool runs concurrently, and it touches nothing but its job inputs.
type Streamer struct {
	cfg    Config
	sample Sampler

	nextID uint64
	chunks map[ChunkCoord]*Chunk

	jobs    chan genJob
	results chan genResult
	done    chan struct{}
}

func NewStreamer(cfg Config, sample Sampler) *Streamer {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	s := &Streamer{
		cfg:     cfg,
		sample:  sample,
		nextID:  1, // ids are wire-visible and start at 1 like segment and bogie ids
		chunks:  map[ChunkCoord]*Chunk{},
		jobs:    make(chan genJob, 256),
		results: make(chan genResult, 256),
		done:    make(chan struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		go s.worker()
	}
	return s
}

// Stop terminates the generation workers. In-flight results are left
// unread; the streamer must not be stepped afterwards.
func (s *Streamer) Stop() { close(s.done) }

func (s *Streamer) worker() {
	for {
		select {
		case <-s.done:
			return
		case job := <-s.jobs:
			mesh := BuildChunkMesh(job.sample, s.cfg.ChunkSize, s.cfg.VertexStride, job.offset)
			select {
			case <-s.done:
				return
			case s.results <- genResult{id: job.id, coord: job.coord, offset: job.offset, mesh: mesh}:
			}
		}
	}
}

// StepResult reports the chunks that changed during one Step call.
type StepResult struct {
	Ready   []*Chunk
	Evicted []*Chunk
}

// Step drains finished generation jobs, queues generation for chunks
// newly inside the load radius, and evicts chunks outside it. It never
// blocks on the worker pool.
func (s *Streamer) Step(viewpoint geom.Vec2) StepResult {
	var res StepResult

	// Integrate completed jobs. Results for evicted or superseded
	// chunk ids are discarded.
drain:
	for {
		select {
		case r := <-s.results:
			ch, ok := s.chunks[r.coord]
			if !ok || ch.ID != r.id || ch.State == StateReady {
				continue
			}
			ch.Mesh = r.mesh
			ch.Offset = r.offset
			ch.State = StateReady
			res.Ready = append(res.Ready, ch)
		default:
			break drain
		}
	}

	center := ChunkCoordAt(viewpoint, s.cfg.ChunkSize)
	r := s.cfg.LoadRadius

	// Queue generation for untracked coordinates inside the radius.
	for x := center.X - r; x < center.X+r; x++ {
		for z := center.Z - r; z < center.Z+r; z++ {
			coord := ChunkCoord{X: x, Z: z}
			if _, ok := s.chunks[coord]; ok {
				continue
			}
			ch := &Chunk{
				ID:     s.nextID,
				Coord:  coord,
				State:  StateQueued,
				Offset: ChunkOrigin(coord, s.cfg.ChunkSize),
			}
			s.nextID++
			s.chunks[coord] = ch

			select {
			case s.jobs <- genJob{id: ch.ID, coord: coord, offset: ch.Offset, sample: s.sample}:
				ch.State = StateGenerating
			default:
				// Queue full; retried next tick while still Queued.
			}
		}
	}

	// Retry chunks whose dispatch did not fit the queue earlier.
	for _, coord := range sortedCoords(s.chunks) {
		ch := s.chunks[coord]
		if ch.State != StateQueued {
			continue
		}
		select {
		case s.jobs <- genJob{id: ch.ID, coord: coord, offset: ch.Offset, sample: s.sample}:
			ch.State = StateGenerating
		default:
		}
	}

	// Evict chunks outside the radius. A late completion for an
	// evicted id is discarded on a later drain.
	for _, coord := range sortedCoords(s.chunks) {
		if coord.X < center.X-r || coord.X > center.X+r ||
			coord.Z < center.Z-r || coord.Z > center.Z+r {
			res.Evicted = append(res.Evicted, s.chunks[coord])
			delete(s.chunks, coord)
		}
	}

	return res
}

// LoadedCount returns the number of tracked chunks in any state.
func (s *Streamer) LoadedCount() int { return len(s.chunks) }

// ReadyCoords returns the coordinates of all Ready chunks in
// deterministic order.
func (s *Streamer) ReadyCoords() []ChunkCoord {
	var out []ChunkCoord
	for _, coord := range sortedCoords(s.chunks) {
		if s.chunks[coord].State == StateReady {
			out = append(out, coord)
		}
	}
	return out
}

// Chunks returns every tracked chunk in deterministic coordinate order.
func (s *Streamer) Chunks() []*Chunk {
	out := make([]*Chunk, 0, len(s.chunks))
	for _, coord := range sortedCoords(s.chunks) {
		out = append(out, s.chunks[coord])
	}
	return out
}

// Reset drops every tracked chunk, forcing regeneration on the next
// Step. Used when the noise settings change at runtime.
func (s *Streamer) Reset() []*Chunk {
	evicted := s.Chunks()
	s.chunks = map[ChunkCoord]*Chunk{}
	return evicted
}

// SetSampler swaps the elevation source. Callers should Reset
// afterwards so stale meshes are regenerated.
func (s *Streamer) SetSampler(sample Sampler) { s.sample = sample }
