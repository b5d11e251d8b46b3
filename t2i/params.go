package t2i

import (
	"crypto/rand"
	"encoding/binary"
	"math"

	"t2i_backend/backends"
)

// Request asks for Images outputs generated from Params.
type Request struct {
	Images int
	Params backends.Params
}

// Task is the immutable snapshot one sub-task works on.
type Task struct {
	Index  int
	Params backends.Params
}

// Normalize returns a private copy of req with the base seed resolved so
// that every derived seed base..base+Images-1 is a fixed non-negative value:
//
//   - backends.SeedRandom, and any other negative seed, is replaced by a
//     fresh random value; otherwise some task could land on -1 and the
//     backend would pick its own seed.
//   - a base seed too close to math.MaxInt64 is lowered so base+i cannot
//     overflow.
//
// Normalizing an already normalized request is a no-op.
func Normalize(req Request) Request {
	out := Request{Images: req.Images, Params: req.Params.Clone()}
	if out.Params.Seed < 0 {
		out.Params.Seed = RandomSeed()
	}
	if req.Images > 1 {
		if limit := math.MaxInt64 - int64(req.Images-1); out.Params.Seed > limit {
			out.Params.Seed = limit
		}
	}
	return out
}

// Task derives the snapshot for index i. Its seed is the base seed plus i.
func (r Request) Task(i int) Task {
	p := r.Params.Clone()
	p.Seed = r.Params.Seed + int64(i)
	return Task{Index: i, Params: p}
}

// RandomSeed draws a non-negative seed in the 31-bit range most diffusion
// backends accept, so base+i cannot overflow for any realistic batch.
func RandomSeed() int64 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 42
	}
	return int64(binary.LittleEndian.Uint32(buf[:]) & 0x7fffffff)
}

// Seed is the derived seed of the task.
func (t Task) Seed() int64 {
	return t.Params.Seed
}
