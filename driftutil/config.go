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
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/drift"
	"github.com/spf13/cast"
)

// FieldConfig holds the configuration needed to build a FieldSet from
// NetCDF files.
type FieldConfig struct {
	// Fields maps field names to file paths.
	Fields map[string]string

	// Variables maps field names to NetCDF variable names.
	Variables map[string]string

	// CoordGroups maps field names to coordinate group names.
	CoordGroups map[string]string

	// CoordVariables lists candidate coordinate variable names per axis.
	CoordVariables map[drift.Axis][]string

	Chunks         drift.ChunkPolicy
	NameMap        drift.NameMap
	AutoChunkBytes int
	Mismatch       drift.MismatchPolicy

	AllowTimeExtrapolation bool

	BlockCacheEntries int
	OpenRetries       int

	Log logrus.FieldLogger
}

// names returns the field names in sorted order.
func (c *FieldConfig) names() []string {
	o := make([]string, 0, len(c.Fields))
	for n := range c.Fields {
		o = append(o, n)
	}
	sort.Strings(o)
	return o
}

// variable returns the NetCDF variable holding field name.
func (c *FieldConfig) variable(name string) string {
	if v, ok := c.Variables[name]; ok && v != "" {
		return v
	}
	return name
}

// group returns the coordinate group of field name.
func (c *FieldConfig) group(name string) string {
	if g, ok := c.CoordGroups[name]; ok && g != "" {
		return g
	}
	return c.Fields[name]
}

// FieldConfigFromViper reads a FieldConfig from cfg.
func FieldConfigFromViper(cfg *viper.Viper) (*FieldConfig, error) {
	fields, err := getStringMapString("Fields", cfg)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("drift: there are no fields specified. Please fill in " +
			"the Fields configuration and try again")
	}
	for k, v := range fields {
		fields[k] = os.ExpandEnv(v)
	}
	variables, err := getStringMapString("Variables", cfg)
	if err != nil {
		return nil, err
	}
	groups, err := getStringMapString("CoordGroups", cfg)
	if err != nil {
		return nil, err
	}
	coordVars, err := axisStringSlices("CoordVariables", cfg)
	if err != nil {
		return nil, err
	}
	nameMap, err := axisStringSlices("ChunkDimsNameMap", cfg)
	if err != nil {
		return nil, err
	}
	chunks, err := ParseChunkSize(cfg.Get("ChunkSize"))
	if err != nil {
		return nil, err
	}
	mismatch, err := drift.ParseMismatchPolicy(strings.ToLower(cfg.GetString("ChunkMismatch")))
	if err != nil {
		return nil, err
	}
	return &FieldConfig{
		Fields:                 fields,
		Variables:              variables,
		CoordGroups:            groups,
		CoordVariables:         coordVars,
		Chunks:                 chunks,
		NameMap:                drift.NameMap(nameMap),
		AutoChunkBytes:         cfg.GetInt("AutoChunkBytes"),
		Mismatch:               mismatch,
		AllowTimeExtrapolation: cfg.GetBool("AllowTimeExtrapolation"),
		BlockCacheEntries:      cfg.GetInt("BlockCacheEntries"),
		OpenRetries:            cfg.GetInt("OpenRetries"),
	}, nil
}

// RunConfig holds the configuration of a simulation run.
type RunConfig struct {
	// AdvectionFields names the U, V and, optionally, W fields.
	AdvectionFields []string

	Positions    []drift.Position
	ParticleTime float64 // NaN for the start of the field time range
	Storage      drift.Storage
	RepeatDT     float64

	DT               float64
	Runtime, EndTime *float64
	OutputDT         float64
	CallbackDT       float64

	OutputFile, TimingFile, SummaryFile, LogFile string
}

// RunConfigFromViper reads a RunConfig from cfg.
func RunConfigFromViper(cfg *viper.Viper) (*RunConfig, error) {
	adv := cast.ToStringSlice(cfg.Get("AdvectionFields"))
	if len(adv) < 2 || len(adv) > 3 {
		return nil, fmt.Errorf("drift: AdvectionFields must list 2 or 3 fields but lists %d", len(adv))
	}
	positions, err := particlePositions(cfg)
	if err != nil {
		return nil, err
	}
	pt, err := optionalFloat("ParticleTime", cfg)
	if err != nil {
		return nil, err
	}
	ptime := math.NaN()
	if pt != nil {
		ptime = *pt
	}
	storage, err := drift.ParseStorage(strings.ToLower(cfg.GetString("ParticleStorage")))
	if err != nil {
		return nil, err
	}
	runtime, err := optionalFloat("Runtime", cfg)
	if err != nil {
		return nil, err
	}
	endTime, err := optionalFloat("EndTime", cfg)
	if err != nil {
		return nil, err
	}
	outputFile, err := checkOutputFile(cfg.GetString("OutputFile"))
	if err != nil {
		return nil, err
	}
	rc := &RunConfig{
		AdvectionFields: adv,
		Positions:       positions,
		ParticleTime:    ptime,
		Storage:         storage,
		RepeatDT:        cfg.GetFloat64("RepeatDT"),
		DT:              cfg.GetFloat64("DT"),
		Runtime:         runtime,
		EndTime:         endTime,
		OutputDT:        cfg.GetFloat64("OutputDT"),
		CallbackDT:      cfg.GetFloat64("CallbackDT"),
		OutputFile:      outputFile,
		LogFile:         checkLogFile(os.ExpandEnv(cfg.GetString("LogFile")), outputFile),
	}
	for _, f := range []struct {
		name string
		dst  *string
	}{{"TimingFile", &rc.TimingFile}, {"SummaryFile", &rc.SummaryFile}} {
		p := cfg.GetString(f.name)
		if p == "" {
			continue
		}
		if *f.dst, err = checkOutputFile(p); err != nil {
			return nil, fmt.Errorf("drift: %s: %v", f.name, err)
		}
	}
	return rc, nil
}

// ParseChunkSize converts a ChunkSize configuration value into a chunk
// policy. Accepted values are false (or an empty string), "auto", a
// list of lengths ordered (time, depth, lat, lon) and aligned to the
// right, given either as a list or a comma-separated string, and a map
// from axis name to [dimension name, length], given either as a map or
// a JSON string.
func ParseChunkSize(v interface{}) (drift.ChunkPolicy, error) {
	switch t := v.(type) {
	case nil:
		return drift.Auto(), nil
	case bool:
		if t {
			return drift.Auto(), nil
		}
		return drift.Disabled(), nil
	case int, int64, int32:
		l, err := cast.ToIntE(t)
		if err != nil {
			return drift.ChunkPolicy{}, chunkSizeErrorf("invalid ChunkSize %v: %v", t, err)
		}
		return drift.Positional(l), nil
	case []interface{}:
		return positionalPolicy(t)
	case []int:
		return drift.Positional(t...), nil
	case []string:
		s := make([]interface{}, len(t))
		for i, x := range t {
			s[i] = x
		}
		return positionalPolicy(s)
	case map[string]interface{}:
		return namedPolicy(t)
	case string:
		s := strings.TrimSpace(t)
		switch strings.ToLower(s) {
		case "", "false", "none", "0":
			return drift.Disabled(), nil
		case "auto", "true":
			return drift.Auto(), nil
		}
		if strings.HasPrefix(s, "{") {
			m := make(map[string]interface{})
			if err := json.NewDecoder(bytes.NewBufferString(s)).Decode(&m); err != nil {
				return drift.ChunkPolicy{}, chunkSizeErrorf("invalid ChunkSize %q: %v", s, err)
			}
			return namedPolicy(m)
		}
		parts := strings.Split(strings.Trim(s, "[]()"), ",")
		l := make([]interface{}, len(parts))
		for i, p := range parts {
			l[i] = strings.TrimSpace(p)
		}
		return positionalPolicy(l)
	}
	return drift.ChunkPolicy{}, chunkSizeErrorf("invalid type for ChunkSize: %#v", v)
}

func positionalPolicy(s []interface{}) (drift.ChunkPolicy, error) {
	l := make([]int, len(s))
	for i, x := range s {
		var err error
		if l[i], err = cast.ToIntE(x); err != nil {
			return drift.ChunkPolicy{}, chunkSizeErrorf("invalid ChunkSize length %v: %v", x, err)
		}
	}
	if len(l) > len(drift.Axes) {
		return drift.ChunkPolicy{}, chunkSizeErrorf("ChunkSize has %d lengths but at most %d are allowed",
			len(l), len(drift.Axes))
	}
	return drift.Positional(l...), nil
}

func namedPolicy(m map[string]interface{}) (drift.ChunkPolicy, error) {
	o := make(map[drift.Axis]drift.NamedChunk, len(m))
	for k, v := range m {
		a, err := drift.ParseAxis(k)
		if err != nil {
			return drift.ChunkPolicy{}, err
		}
		pair, err := cast.ToSliceE(v)
		if err != nil || len(pair) != 2 {
			return drift.ChunkPolicy{}, chunkSizeErrorf("ChunkSize for axis %s should be [dimension name, length] but is %v", k, v)
		}
		dim, err := cast.ToStringE(pair[0])
		if err != nil {
			return drift.ChunkPolicy{}, chunkSizeErrorf("ChunkSize dimension name for axis %s: %v", k, err)
		}
		l, err := cast.ToIntE(pair[1])
		if err != nil {
			return drift.ChunkPolicy{}, chunkSizeErrorf("ChunkSize length for axis %s: %v", k, err)
		}
		o[a] = drift.NamedChunk{Dim: dim, Len: l}
	}
	return drift.Named(o), nil
}

// chunkSizeErrorf returns a configuration error about the ChunkSize
// option.
func chunkSizeErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{drift.ErrConfig}, args...)...)
}

// particlePositions reads the particle release positions.
func particlePositions(cfg *viper.Viper) ([]drift.Position, error) {
	lon, err := floatSlice("ParticleLon", cfg)
	if err != nil {
		return nil, err
	}
	lat, err := floatSlice("ParticleLat", cfg)
	if err != nil {
		return nil, err
	}
	depth, err := floatSlice("ParticleDepth", cfg)
	if err != nil {
		return nil, err
	}
	if len(lon) != len(lat) {
		return nil, fmt.Errorf("drift: ParticleLon has %d values but ParticleLat has %d", len(lon), len(lat))
	}
	if len(depth) != 0 && len(depth) != len(lon) {
		return nil, fmt.Errorf("drift: ParticleDepth has %d values but ParticleLon has %d", len(depth), len(lon))
	}
	o := make([]drift.Position, len(lon))
	for i := range o {
		o[i] = drift.Position{Lon: lon[i], Lat: lat[i]}
		if len(depth) != 0 {
			o[i].Depth = depth[i]
		}
	}
	return o, nil
}

// floatSlice returns a []float64 from a viper configuration, accounting
// for the fact that it may have been set as strings on the command line.
func floatSlice(varName string, cfg *viper.Viper) ([]float64, error) {
	i := cfg.Get(varName)
	if s, ok := i.(string); ok {
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		i = strings.Split(s, ",")
	}
	s, err := cast.ToSliceE(i)
	if err != nil {
		if ss, err2 := cast.ToStringSliceE(i); err2 == nil {
			s = make([]interface{}, len(ss))
			for j, v := range ss {
				s[j] = v
			}
		} else {
			return nil, fmt.Errorf("drift: invalid value for %s: %v", varName, err)
		}
	}
	o := make([]float64, len(s))
	for j, v := range s {
		if str, ok := v.(string); ok {
			v = strings.TrimSpace(str)
		}
		if o[j], err = cast.ToFloat64E(v); err != nil {
			return nil, fmt.Errorf("drift: invalid value in %s: %v", varName, err)
		}
	}
	return o, nil
}

// optionalFloat returns nil if varName is unset or empty.
func optionalFloat(varName string, cfg *viper.Viper) (*float64, error) {
	i := cfg.Get(varName)
	if i == nil {
		return nil, nil
	}
	if s, ok := i.(string); ok {
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		i = strings.TrimSpace(s)
	}
	v, err := cast.ToFloat64E(i)
	if err != nil {
		return nil, fmt.Errorf("drift: invalid value for %s: %v", varName, err)
	}
	return &v, nil
}

// getStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func getStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return make(map[string]string), nil
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(v)
	case string:
		o := make(map[string]string)
		if strings.TrimSpace(v) == "" {
			return o, nil
		}
		if err := json.NewDecoder(bytes.NewBufferString(v)).Decode(&o); err != nil {
			return nil, fmt.Errorf("drift: invalid value for %s: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("drift: invalid type for %s: %#v", varName, i)
	}
}

// getStringMapStringSlice returns a map[string][]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func getStringMapStringSlice(varName string, cfg *viper.Viper) (map[string][]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return make(map[string][]string), nil
	case map[string][]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringSliceE(v)
	case string:
		o := make(map[string][]string)
		if strings.TrimSpace(v) == "" {
			return o, nil
		}
		if err := json.NewDecoder(bytes.NewBufferString(v)).Decode(&o); err != nil {
			return nil, fmt.Errorf("drift: invalid value for %s: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("drift: invalid type for %s: %#v", varName, i)
	}
}

// axisStringSlices is getStringMapStringSlice with the keys parsed as
// axis names.
func axisStringSlices(varName string, cfg *viper.Viper) (map[drift.Axis][]string, error) {
	m, err := getStringMapStringSlice(varName, cfg)
	if err != nil {
		return nil, err
	}
	o := make(map[drift.Axis][]string, len(m))
	for k, v := range m {
		a, err := drift.ParseAxis(k)
		if err != nil {
			return nil, fmt.Errorf("drift: %s: %v", varName, err)
		}
		o[a] = v
	}
	return o, nil
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expand any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`drift: you need to specify an output file configuration variable (for example: OutputFile="output.csv")`)
	}
	f = os.ExpandEnv(f)
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("drift: the output directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return logFile
}

// setLogLevel sets the level of the standard logger.
func setLogLevel(level string) error {
	if level == "" {
		return nil
	}
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("drift: invalid LogLevel: %v", err)
	}
	logrus.SetLevel(l)
	return nil
}
