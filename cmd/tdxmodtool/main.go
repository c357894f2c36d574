// tdxmodtool lists, selects and loads Intel TDX module blobs through the
// kernel's seamldr firmware upload interface.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"github.com/tdxtools/tdxmodule/catalog"
	"github.com/tdxtools/tdxmodule/compat"
	"github.com/tdxtools/tdxmodule/loader"
	"github.com/tdxtools/tdxmodule/platform"
	"github.com/tdxtools/tdxmodule/version"
)

const (
	moduleDirFlag   = "module-dir"
	controlRootFlag = "control-root"
	allowDebugFlag  = "allow-debug"
	logLevelFlag    = "log-level"
)

var (
	logLevels = map[string]logrus.Level{
		"panic": logrus.PanicLevel,
		"fatal": logrus.FatalLevel,
		"error": logrus.ErrorLevel,
		"warn":  logrus.WarnLevel,
		"info":  logrus.InfoLevel,
		"debug": logrus.DebugLevel,
		"trace": logrus.TraceLevel,
	}

	log = logrus.WithField("service", "tdxmodtool")
)

type config struct {
	moduleDir   string
	controlRoot string
	allowDebug  bool
}

func getConfig(cmd *cli.Command) *config {
	c := &config{
		moduleDir:   cmd.String(moduleDirFlag),
		controlRoot: cmd.String(controlRootFlag),
		allowDebug:  cmd.Bool(allowDebugFlag),
	}

	level := cmd.String(logLevelFlag)
	l, ok := logLevels[strings.ToLower(level)]
	if !ok {
		log.Warnf("LogLevel %v does not exist. Default to info level", level)
		l = logrus.InfoLevel
	}
	logrus.SetLevel(l)

	return c
}

func buildCatalog(fs afero.Fs, c *config) ([]*catalog.Module, error) {
	modules, err := catalog.Build(fs, c.moduleDir)
	if err != nil {
		return nil, err
	}
	if len(modules) == 0 {
		return nil, fmt.Errorf("no TDX module found in %s", c.moduleDir)
	}
	return modules, nil
}

func listAction(ctx context.Context, cmd *cli.Command) error {
	c := getConfig(cmd)
	fs := afero.NewOsFs()

	modules, err := buildCatalog(fs, c)
	if err != nil {
		return err
	}
	snap := platform.NewReader(fs).Snapshot()

	catalog.SortDescending(modules)
	for _, m := range modules {
		var notes string
		if !compat.Compatible(m, snap) {
			notes += "[incompatible]"
		}
		if m.Debug() {
			notes += "[debug]"
		}
		fmt.Printf("%s %s\n", m.Version, notes)
	}
	return nil
}

func updateAction(ctx context.Context, cmd *cli.Command) error {
	c := getConfig(cmd)
	fs := afero.NewOsFs()

	modules, err := buildCatalog(fs, c)
	if err != nil {
		return err
	}

	reader := platform.NewReader(fs)
	snap := reader.Snapshot()
	newest := compat.NewestCapable(modules, snap, c.allowDebug)

	target := newest
	if requested := cmd.Args().First(); requested != "" {
		m, ok := catalog.Find(modules, requested)
		if !ok {
			return fmt.Errorf("module version %s does not exist", requested)
		}
		if m != newest {
			log.Warnf("Specified module version %s is not the newest capable version", requested)
		}
		target = m
	} else if newest == nil {
		log.Info("No newer TDX module found for update")
		return nil
	}

	l := loader.New(fs, reader,
		loader.WithControlRoot(c.controlRoot),
		loader.WithAllowDebug(c.allowDebug),
	)
	result, err := l.Load(ctx, target, snap)
	var rejected *loader.PreconditionError
	if errors.As(err, &rejected) {
		// A rejected candidate is reported but is not a protocol failure.
		log.Error(rejected)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Upgrade TDX module from %s to %s\n",
		formatVersion(result.Previous), formatVersion(result.Current))
	return nil
}

func formatVersion(v *version.Version) string {
	if v == nil {
		return "unknown"
	}
	return v.String()
}

func main() {
	cmd := &cli.Command{
		Name:  "tdxmodtool",
		Usage: "Select and load Intel TDX module blobs through the seamldr firmware upload interface",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  moduleDirFlag,
				Usage: "catalog root containing mapping_file.json and joined_files/",
				Value: ".",
			},
			&cli.StringFlag{
				Name:  controlRootFlag,
				Usage: "firmware upload interface directory",
				Value: loader.DefaultControlRoot,
			},
			&cli.BoolFlag{
				Name:  allowDebugFlag,
				Usage: "allow loading debug-build modules",
			},
			&cli.StringFlag{
				Name:  logLevelFlag,
				Usage: fmt.Sprintf("set log level. Possible: %s", strings.Join(levelNames(), ",")),
				Value: "info",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list all cataloged module versions with compatibility annotations",
				Action: listAction,
			},
			{
				Name:      "update",
				Usage:     "load the newest capable module, or the specified version",
				ArgsUsage: "[VERSION]",
				Action:    updateAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func levelNames() []string {
	names := make([]string, 0, len(logLevels))
	for name := range logLevels {
		names = append(names, name)
	}
	return names
}
