package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/campusdeals/core/university"
	appfs "github.com/trezcool/campusdeals/fs"
)

const universitiesSeedPath = "seed/universities.yaml"

type universitiesSeed struct {
	Universities []university.NewUniversity `yaml:"universities"`
}

func (cli *commandLine) seedCmd() *cobra.Command {
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Load reference data",
	}

	var file string
	unis := &cobra.Command{
		Use:   "universities",
		Short: "Create or update the universities offered at registration",
		Long:  "Upserts universities by name from --file, or from the embedded seed when no file is given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var fsys fs.FS = appfs.FS
			path := universitiesSeedPath
			if file != "" {
				fsys, path = os.DirFS(filepath.Dir(file)), filepath.Base(file)
			}
			created, updated, err := cli.seedUniversities(cmd.Context(), fsys, path)
			if err != nil {
				return cli.fail("seed universities", err)
			}
			_, _ = fmt.Fprintf(cli.out, "universities: %d created, %d updated\n", created, updated)
			return nil
		},
	}
	unis.Flags().StringVar(&file, "file", "", "YAML seed file to load instead of the embedded one")
	seed.AddCommand(unis)
	return seed
}

// seedUniversities upserts every university listed in the YAML file at path.
// Entries are all validated before anything is written.
func (cli *commandLine) seedUniversities(ctx context.Context, fsys fs.FS, path string) (created, updated int, err error) {
	raw, err := fs.ReadFile(fsys, path)
	if err != nil {
		return 0, 0, errors.Wrap(err, "reading seed file")
	}
	var data universitiesSeed
	if err = yaml.Unmarshal(raw, &data); err != nil {
		return 0, 0, errors.Wrap(err, "parsing seed file")
	}

	validate := validator.New()
	for i := range data.Universities {
		if err = data.Universities[i].Validate(validate); err != nil {
			return 0, 0, errors.Wrapf(err, "university #%d (%q)", i+1, data.Universities[i].Name)
		}
	}

	for _, nu := range data.Universities {
		_, isNew, err := cli.uniSvc.Upsert(ctx, nu)
		if err != nil {
			return created, updated, errors.Wrapf(err, "saving %q", nu.Name)
		}
		if isNew {
			created++
		} else {
			updated++
		}
	}
	cli.logger.Info(fmt.Sprintf("seeded universities from %s", path), map[string]interface{}{"created": created, "updated": updated})
	return created, updated, nil
}
