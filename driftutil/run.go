/*
Copyright © 2019 the Drift authors.
This file is part of Drift.

Drift is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Drift is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Drift.  If not, see <http://www.gnu.org/licenses/>.
*/

package driftutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/drift"
	"github.com/spf13/cobra"
)

// DefaultCoordVariables are the coordinate variable names searched for
// when none are configured for an axis.
var DefaultCoordVariables = map[drift.Axis][]string{
	drift.Time:  {"time", "time_counter"},
	drift.Depth: {"depth", "depthu", "depthv", "depthw", "deptht"},
	drift.Lat:   {"lat", "latitude"},
	drift.Lon:   {"lon", "longitude"},
}

// openSource opens the NetCDF file at path, retrying with exponential
// backoff up to retries times.
func openSource(path string, cacheEntries, retries int, log logrus.FieldLogger) (*drift.CDFSource, *os.File, error) {
	var f *os.File
	var src *drift.CDFSource
	op := func() error {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return err
		}
		src, err = drift.NewCDFSource(f, cacheEntries)
		if err != nil {
			f.Close()
			return err
		}
		return nil
	}
	err := backoff.RetryNotify(op,
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)),
		func(err error, d time.Duration) {
			log.WithFields(logrus.Fields{"file": path, "wait": d}).Warnf("drift: opening field file: %v; retrying", err)
		},
	)
	if err != nil {
		return nil, nil, fmt.Errorf("drift: opening field file %s: %v", path, err)
	}
	return src, f, nil
}

// readCoords reads the coordinates present in src, using the first
// candidate variable name found for each axis.
func readCoords(name string, src *drift.CDFSource, candidates map[drift.Axis][]string) (*drift.Coords, error) {
	c := &drift.Coords{Name: name}
	for _, a := range drift.Axes {
		cands := candidates[a]
		if len(cands) == 0 {
			cands = DefaultCoordVariables[a]
		}
		for _, v := range cands {
			if _, err := src.Lengths(v); err != nil {
				continue
			}
			vals, err := src.Coordinate(v)
			if err != nil {
				return nil, err
			}
			switch a {
			case drift.Time:
				c.Time = vals
			case drift.Depth:
				c.Depth = vals
			case drift.Lat:
				c.Lat = vals
			case drift.Lon:
				c.Lon = vals
			}
			break
		}
	}
	if c.Lat == nil || c.Lon == nil {
		return nil, fmt.Errorf("drift: coordinate group %s: no latitude or longitude coordinate variable found", name)
	}
	return c, nil
}

// dimNames matches the dimensions of variable in src to the axes of c.
// The variable's dimensions must follow the (time, depth, lat, lon)
// order of the axes it varies along.
func dimNames(field, variable string, src *drift.CDFSource, c *drift.Coords) (map[drift.Axis]string, error) {
	lengths, err := src.Lengths(variable)
	if err != nil {
		return nil, fmt.Errorf("drift: field %s: %v", field, err)
	}
	dims := src.Header().Dimensions(variable)
	var axes []drift.Axis
	for _, a := range drift.Axes {
		if c.Size(a) > 0 {
			axes = append(axes, a)
		}
	}
	if len(dims) != len(axes) {
		return nil, fmt.Errorf("drift: field %s: variable %s has dimensions %v but its coordinates have axes %v",
			field, variable, dims, axes)
	}
	o := make(map[drift.Axis]string, len(axes))
	for i, a := range axes {
		if lengths[i] != c.Size(a) {
			return nil, fmt.Errorf("drift: field %s: dimension %s of variable %s has length %d but the %s coordinate has %d values",
				field, dims[i], variable, lengths[i], a, c.Size(a))
		}
		o[a] = dims[i]
	}
	return o, nil
}

// OpenFieldSet opens the files named in cfg and builds a FieldSet from
// them. The returned function closes the files.
func OpenFieldSet(cfg *FieldConfig) (*drift.FieldSet, func(), error) {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	sources := make(map[string]*drift.CDFSource)
	var files []*os.File
	closer := func() {
		for _, f := range files {
			f.Close()
		}
	}
	coords := make(map[string]*drift.Coords)
	var specs []drift.FieldSpec
	for _, name := range cfg.names() {
		path := cfg.Fields[name]
		src, ok := sources[path]
		if !ok {
			var f *os.File
			var err error
			src, f, err = openSource(path, cfg.BlockCacheEntries, cfg.OpenRetries, log)
			if err != nil {
				closer()
				return nil, nil, err
			}
			sources[path] = src
			files = append(files, f)
		}
		group := cfg.group(name)
		c, ok := coords[group]
		if !ok {
			var err error
			if c, err = readCoords(group, src, cfg.CoordVariables); err != nil {
				closer()
				return nil, nil, err
			}
			coords[group] = c
		}
		variable := cfg.variable(name)
		dn, err := dimNames(name, variable, src, c)
		if err != nil {
			closer()
			return nil, nil, err
		}
		specs = append(specs, drift.FieldSpec{
			Name:     name,
			Variable: variable,
			Coords:   c,
			DimNames: dn,
			Source:   src,
			Chunks:   cfg.Chunks,
		})
	}
	opts := []drift.FieldSetOption{
		drift.WithNameMap(cfg.NameMap),
		drift.WithMismatchPolicy(cfg.Mismatch),
		drift.WithTimeExtrapolation(cfg.AllowTimeExtrapolation),
		drift.WithLogger(log),
	}
	if cfg.AutoChunkBytes != 0 {
		opts = append(opts, drift.WithAutoChunkBytes(cfg.AutoChunkBytes))
	}
	fs, err := drift.NewFieldSet(specs, opts...)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return fs, func() {
		fs.Close()
		closer()
	}, nil
}

// Run runs a particle simulation.
func Run(cmd *cobra.Command, fieldCfg *FieldConfig, runCfg *RunConfig) error {
	startTime := time.Now()

	logfile, err := os.Create(runCfg.LogFile)
	if err != nil {
		return fmt.Errorf("drift: problem creating log file: %v", err)
	}
	defer logfile.Close()
	log := logrus.New()
	log.Out = io.MultiWriter(cmd.OutOrStdout(), logfile)
	log.Level = logrus.GetLevel()
	fieldCfg.Log = log

	fs, closeFields, err := OpenFieldSet(fieldCfg)
	if err != nil {
		return err
	}
	defer closeFields()
	for _, g := range fs.GridSet.Grids() {
		log.WithFields(logrus.Fields{
			"grid":    g.ID,
			"coords":  g.Coords.Name,
			"nchunks": g.NChunks(),
			"refs":    g.Refs(),
		}).Info("drift: grid")
	}

	var k drift.EulerAdvection
	for i, dst := range []**drift.Field{&k.U, &k.V, &k.W} {
		if i >= len(runCfg.AdvectionFields) {
			break
		}
		if *dst, err = fs.Field(runCfg.AdvectionFields[i]); err != nil {
			return err
		}
	}

	ids := drift.NewIDGenerator(0)
	if err = ids.Open(); err != nil {
		return err
	}
	defer ids.Close()
	ps, err := drift.NewParticleSet(fs, runCfg.Storage, ids, runCfg.ParticleTime, runCfg.Positions)
	if err != nil {
		return err
	}
	ps.Log = log
	if runCfg.RepeatDT > 0 {
		ps.RepeatDT = runCfg.RepeatDT
		ps.RepeatPositions = runCfg.Positions
	}

	out, err := os.Create(runCfg.OutputFile)
	if err != nil {
		return fmt.Errorf("drift: problem creating output file: %v", err)
	}
	defer out.Close()
	w := drift.NewCSVWriter(out)

	progress := func(ctx context.Context, t float64) error {
		log.WithFields(logrus.Fields{
			"time":      t,
			"particles": ps.Particles.Len(),
			"elapsed":   time.Since(startTime).Round(time.Millisecond).String(),
		}).Info("drift: progress")
		return nil
	}

	log.WithFields(logrus.Fields{
		"fields":    len(fs.Fields),
		"grids":     fs.GridSet.Size(),
		"particles": ps.Particles.Len(),
		"dt":        runCfg.DT,
	}).Info("drift: starting run")

	err = ps.Execute(context.Background(), drift.ExecuteConfig{
		Kernel:     k,
		EndTime:    runCfg.EndTime,
		Runtime:    runCfg.Runtime,
		DT:         runCfg.DT,
		OutputDT:   runCfg.OutputDT,
		Output:     w,
		CallbackDT: runCfg.CallbackDT,
		Callbacks:  []func(context.Context, float64) error{progress},
	})
	if err != nil {
		return err
	}

	if runCfg.TimingFile != "" {
		if err := writeFile(runCfg.TimingFile, ps.Telemetry.WriteCSV); err != nil {
			return err
		}
	}
	if runCfg.SummaryFile != "" {
		if err := writeFile(runCfg.SummaryFile, ps.Telemetry.WriteYAML); err != nil {
			return err
		}
	}
	log.WithFields(logrus.Fields{
		"snapshots": w.Snapshots(),
		"particles": ps.Particles.Len(),
		"elapsed":   time.Since(startTime).Round(time.Millisecond).String(),
	}).Info("drift: run finished")
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("drift: creating %s: %v", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
