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

	"github.com/lnashier/viper"
	"github.com/spatialmodel/drift"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to Drift.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Fields",
			usage: `
              Fields maps each field name to the NetCDF file holding its data,
              for example {"U":"${DATA}/U.nc","V":"${DATA}/V.nc"}. Environment
              variables in the paths are expanded.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), layoutCmd.Flags()},
		},
		{
			name: "Variables",
			usage: `
              Variables maps field names to NetCDF variable names. Fields that
              are not listed are read from the variable with the field's name.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), layoutCmd.Flags()},
		},
		{
			name: "CoordGroups",
			usage: `
              CoordGroups maps field names to coordinate group names. Fields in the
              same group share the coordinates read from the file of the first
              field in the group and are expected to share a chunk layout. By
              default fields are grouped by file.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), layoutCmd.Flags()},
		},
		{
			name: "CoordVariables",
			usage: `
              CoordVariables maps each axis (time, depth, lat, lon) to a list of
              candidate coordinate variable names. The first one present in a
              file is used.`,
			defaultVal: `{"time":["time","time_counter"],"depth":["depth","depthu","depthv","depthw","deptht"],"lat":["lat","latitude"],"lon":["lon","longitude"]}`,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), layoutCmd.Flags()},
		},
		{
			name: "ChunkSize",
			usage: `
              ChunkSize sets how fields are split into chunks that are loaded on
              demand. It can be "false" to load whole fields, "auto" to size chunks
              automatically, a comma-separated list of chunk lengths ordered
              (time, depth, lat, lon) and aligned to the right, or a JSON map from
              axis to [dimension name, length], for example {"depth":["depthu",75]}.`,
			defaultVal: "auto",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), layoutCmd.Flags()},
		},
		{
			name: "ChunkDimsNameMap",
			usage: `
              ChunkDimsNameMap maps each axis to the dimension names that may be
              used for it in named ChunkSize requests, for example
              {"depth":["depthu","depthv","depthw"]}.`,
			defaultVal: "{}",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), layoutCmd.Flags()},
		},
		{
			name: "AutoChunkBytes",
			usage: `
              AutoChunkBytes is the target size in bytes of one spatial chunk
              when ChunkSize is "auto".`,
			defaultVal: drift.DefaultAutoChunkBytes,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), layoutCmd.Flags()},
		},
		{
			name: "ChunkMismatch",
			usage: `
              ChunkMismatch sets what happens when fields sharing coordinates
              request different chunk lengths: "fallback" uses a single chunk
              along the disputed axis for all of them, "separate" gives each
              layout its own grid, and "error" stops with an error.`,
			defaultVal: "fallback",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), layoutCmd.Flags()},
		},
		{
			name: "AllowTimeExtrapolation",
			usage: `
              AllowTimeExtrapolation allows the simulation to run past the ends of
              the field time axes, using the nearest time slice.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "AdvectionFields",
			usage: `
              AdvectionFields lists the names of the eastward, northward and,
              optionally, vertical velocity fields.`,
			defaultVal: []string{"U", "V"},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ParticleLon",
			usage: `
              ParticleLon lists the longitudes of the released particles.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ParticleLat",
			usage: `
              ParticleLat lists the latitudes of the released particles.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ParticleDepth",
			usage: `
              ParticleDepth lists the depths of the released particles. If it is
              empty, particles are released at depth 0.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ParticleTime",
			usage: `
              ParticleTime is the release time of the particles in seconds. If it is
              empty, particles start at the beginning of the field time range
              (or the end, when DT is negative).`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ParticleStorage",
			usage: `
              ParticleStorage is the memory layout of the particle set: "soa" or "aos".`,
			defaultVal: "soa",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "RepeatDT",
			usage: `
              RepeatDT is the interval in seconds at which particles are released
              again at the same positions. 0 releases them once.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DT",
			usage: `
              DT is the time step in seconds. Negative values run backward in time.`,
			defaultVal: 300.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Runtime",
			usage: `
              Runtime is the length of the run in seconds. Only one of Runtime and
              EndTime may be set. If neither is, the run covers the field time range.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "EndTime",
			usage: `
              EndTime is the time in seconds at which the run ends.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputDT",
			usage: `
              OutputDT is the interval in seconds between particle snapshots.
              0 writes only the first and last snapshots.`,
			defaultVal: 3600.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "CallbackDT",
			usage: `
              CallbackDT is the interval in seconds between progress reports. If
              it is 0 it defaults to the smallest of OutputDT and RepeatDT.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path of the CSV file that particle snapshots are
              written to.`,
			defaultVal: "drift_output.csv",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TimingFile",
			usage: `
              TimingFile is the path of the CSV file that per-iteration timings are
              written to. If it is empty, timings are not written.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SummaryFile",
			usage: `
              SummaryFile is the path of the YAML file that the run summary is
              written to. If it is empty, the summary is not written.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path of the log file. If it is empty, it is placed next
              to OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of log messages: debug, info, warning
              or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "BlockCacheEntries",
			usage: `
              BlockCacheEntries is the number of recently read chunk blocks kept in
              memory per file.`,
			defaultVal: 64,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), layoutCmd.Flags()},
		},
		{
			name: "OpenRetries",
			usage: `
              OpenRetries is the number of times opening an input file is retried,
              with exponential backoff, before giving up.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), layoutCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("DRIFT")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, v, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, v, option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, v, option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, v, option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, v, option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, v, option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, v, option.usage)
				} else {
					set.IntP(option.name, option.shorthand, v, option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, v, option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, v, option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(v)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(layoutCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("drift: problem reading configuration file: %v", err)
		}
	}
	return setLogLevel(Cfg.GetString("LogLevel"))
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "drift",
	Short: "A chunked Lagrangian particle tracker.",
	Long: `Drift advects particles through gridded, time-varying velocity fields
stored in NetCDF files. Fields are split into chunks that are only read
when particles reach them, and only a small window of time slices is held
in memory at once.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'DRIFT_var' where 'var' is the
name of the variable to be set. Paths may contain environment variables.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of Drift.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("Drift v%s\n", drift.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd runs a simulation.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a particle simulation.",
	Long: `run reads the configured fields, releases particles and advects them
until the end of the run, writing particle snapshots, timing information and
a run summary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fieldCfg, err := FieldConfigFromViper(Cfg)
		if err != nil {
			return err
		}
		runCfg, err := RunConfigFromViper(Cfg)
		if err != nil {
			return err
		}
		return Run(cmd, fieldCfg, runCfg)
	},
	DisableAutoGenTag: true,
}

// layoutCmd prints the chunk layout of the configured fields.
var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Print the chunk layout of the configured fields.",
	Long: `layout reads the configured fields and prints, in TOML format, the grids
they are assigned to and the chunk layout of each grid, without running a
simulation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fieldCfg, err := FieldConfigFromViper(Cfg)
		if err != nil {
			return err
		}
		fs, closer, err := OpenFieldSet(fieldCfg)
		if err != nil {
			return err
		}
		defer closer()
		return WriteLayout(cmd.OutOrStdout(), fs)
	},
	DisableAutoGenTag: true,
}
