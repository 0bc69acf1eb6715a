package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/KyungWonPark/faroi/internal/config"
	"github.com/KyungWonPark/faroi/internal/extract"
	"github.com/KyungWonPark/faroi/internal/logging"
	"github.com/KyungWonPark/faroi/internal/summary"
	"github.com/KyungWonPark/faroi/internal/volume"
	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// Example calls:
// faroi extract ADNI_003_S_1074_..._masked_FAskel.nii.gz
// faroi --config tbss.yaml aggregate /data/enigmaDTI/TBSS/run_tbss/FA_individ
// faroi --config per-subject.yaml extract scans/*_masked_FAskel.nii.gz
// faroi summarize voxel_*.csv
// faroi summarize --aggregate ADNI_Corpus_Data.csv
func main() {
	app := cli.NewApp()
	app.Name = "faroi"
	app.Usage = "Extract FA values inside ROI masks from skeletonized TBSS maps"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: "faroi.yaml",
			Usage: "YAML or TOML configuration file; defaults are used when it does not exist",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "Log every written region table",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:      "extract",
			Usage:     "Write one voxel table per mask for each given subject scan",
			ArgsUsage: "<subject.nii.gz>...",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "out, o", Usage: "Output directory (overrides output.dir)"},
				cli.BoolFlag{Name: "npy", Usage: "Also write each table as an N x 4 .npy array"},
			},
			Action: runExtract,
		},
		{
			Name:      "aggregate",
			Usage:     "Walk a directory of subject scans and write one wide CSV per mask group",
			ArgsUsage: "<root>",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "out, o", Usage: "Output directory (overrides output.dir)"},
				cli.StringFlag{Name: "ragged", Usage: "Ragged row policy: keep, pad or reject"},
				cli.IntFlag{Name: "workers, j", Usage: "Subjects processed at once"},
				cli.BoolFlag{Name: "npy", Usage: "Also write rectangular groups as .npy"},
			},
			Action: runAggregate,
		},
		{
			Name:      "summarize",
			Usage:     "Count zero and nonzero voxels in region tables (.txt, .csv, .npy)",
			ArgsUsage: "<table>...",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "aggregate, a", Usage: "Tables are aggregate CSVs written by aggregate"},
			},
			Action: runSummarize,
		},
		{
			Name:      "init-config",
			Usage:     "Write the default configuration",
			ArgsUsage: "<path>",
			Action:    runInitConfig,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// setup loads the configuration, applies command flags and prepares logging
func setup(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.GlobalString("config"))
	if err != nil {
		return nil, err
	}

	if out := c.String("out"); out != "" {
		cfg.Output.Dir = out
	}
	if c.Bool("npy") {
		cfg.Output.Npy = true
	}
	if policy := c.String("ragged"); policy != "" {
		cfg.Ragged.Policy = policy
	}
	if workers := c.Int("workers"); workers > 0 {
		cfg.Workers = workers
	}
	if c.GlobalBool("verbose") {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logging.Setup(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func runExtract(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.NewExitError("extract needs at least one subject scan", 2)
	}

	cfg, err := setup(c)
	if err != nil {
		return err
	}
	if err := checkExtractArgs(cfg, c.NArg()); err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	e := extract.NewExtractor(cfg, volume.NiftiLoader{}, logging.Observer(log.StandardLogger()))

	failed := 0
	for _, path := range c.Args() {
		if err := e.ExtractAll(path); err != nil {
			log.WithError(err).WithField("subject", path).Error("Extraction failed")
			failed++
			continue
		}
		log.WithField("subject", extract.SubjectID(path, cfg.SubjectSuffix)).Info("Wrote region tables")
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d subjects failed", failed, c.NArg())
	}
	return nil
}

// checkExtractArgs refuses several subjects when they would write to the same tables
func checkExtractArgs(cfg *config.Config, subjects int) error {
	if subjects > 1 && !cfg.PerSubjectOutput() {
		return fmt.Errorf("%d subjects would overwrite each other's tables: put %s in output.pattern, e.g. %q",
			subjects, config.SubjectPlaceholder, config.SubjectPlaceholder+"/"+cfg.Output.Pattern)
	}
	return nil
}

func runAggregate(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("aggregate needs exactly one root directory", 2)
	}

	cfg, err := setup(c)
	if err != nil {
		return err
	}
	if len(cfg.Groups) == 0 {
		return errors.New("no mask groups configured")
	}

	e := extract.NewExtractor(cfg, volume.NiftiLoader{}, logging.Observer(log.StandardLogger()))

	agg, err := e.AggregateSubjects(c.Args().First())
	if err != nil {
		return err
	}
	if err := e.WriteAggregate(agg); err != nil {
		return err
	}

	for _, t := range agg.Ordered() {
		min, max := t.Widths()
		entry := log.WithFields(log.Fields{
			"group": t.Name,
			"rows":  len(t.Rows),
			"width": max,
		})
		if t.Ragged() {
			entry.Warnf("Rows hold %d to %d values; columns are not aligned across subjects", min, max)
		}
	}

	log.Infof("Aggregated %s subjects, %s left out",
		humanize.Comma(int64(len(agg.Subjects))), humanize.Comma(int64(len(agg.Failures))))
	if len(agg.Failures) > 0 {
		return fmt.Errorf("%d subjects failed", len(agg.Failures))
	}
	return nil
}

func runSummarize(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.NewExitError("summarize needs at least one table", 2)
	}

	for _, path := range c.Args() {
		if c.Bool("aggregate") {
			s, err := summary.SummarizeAggregate(path)
			if err != nil {
				return err
			}
			fmt.Print(s.Report())
			continue
		}

		s, err := summary.Summarize(path)
		if err != nil {
			return err
		}
		fmt.Print(s.Report())
	}
	return nil
}

func runInitConfig(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		path = c.GlobalString("config")
	}
	if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
		return err
	}
	fmt.Printf("Wrote default configuration to %s\n", path)
	return nil
}
