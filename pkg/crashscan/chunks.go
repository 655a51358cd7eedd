package crashscan

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultChunkSize is the number of lines each ScanChunks worker handles.
const DefaultChunkSize = 256

// ScanChunks applies scan to consecutive chunks of lines in parallel and
// returns the per-chunk results in chunk order, so merged output matches a
// sequential scan. Inputs no longer than one chunk are scanned inline.
//
// scan receives the chunk and the index of its first line. The first error,
// or ctx cancellation, stops the scan.
func ScanChunks[R any](ctx context.Context, lines []string, chunkSize int, scan func(ctx context.Context, chunk []string, offset int) (R, error)) ([]R, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(lines) <= chunkSize {
		r, err := scan(ctx, lines, 0)
		if err != nil {
			return nil, err
		}
		return []R{r}, nil
	}

	n := (len(lines) + chunkSize - 1) / chunkSize
	out := make([]R, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		start := i * chunkSize
		end := min(start+chunkSize, len(lines))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := scan(gctx, lines[start:end], start)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
