//  Copyright 2019 Marius Ackerman
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package grid

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/goccmack/beatgrid/internal/config"
	"github.com/goccmack/beatgrid/internal/detect"
)

// Result is the outcome of one file of a batch.
type Result struct {
	Path     string
	Analysis *Analysis
	Err      error
}

/*
AnalyzeAll analyses paths on cfg.Workers goroutines, one file per worker.
sink, if not nil, is called from the worker with each successful analysis; an
error it returns becomes the error of that file. A failed file does not stop
the others. Results are in the order of paths.
*/
func AnalyzeAll(ctx context.Context, paths []string, cfg config.Config, det detect.Detector, sink func(*Analysis) error) []Result {
	results := make([]Result, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for i, path := range paths {
		results[i].Path = path
		g.Go(func() error {
			a, err := Analyze(ctx, path, cfg, det)
			if err == nil && sink != nil {
				err = sink(a)
			}
			if err != nil {
				slog.Error("analysis failed", "path", path, "err", err)
				results[i].Err = err
				return nil
			}
			a.Signal = nil
			results[i].Analysis = a
			return nil
		})
	}
	g.Wait()
	return results
}
