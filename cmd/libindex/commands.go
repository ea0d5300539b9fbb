// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"

	"github.com/poiesic/libindex"
	"github.com/urfave/cli/v2"
)

func scanCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if root := c.String("root"); root != "" {
		cfg.Library.Root = root
	}
	if cfg.Library.Root == "" {
		return cli.Exit("library root is required (set library.root, LIBINDEX_LIBRARY_ROOT or --root)", 2)
	}

	var opts []libindex.Option
	if every := c.Int("progress"); every > 0 {
		opts = append(opts, libindex.WithProgress(c.App.ErrWriter, every))
	}

	idx, err := openIndex(c.Context, cfg, opts...)
	if err != nil {
		return err
	}
	defer idx.Close()

	result, err := idx.Scan(c.Context)
	if err != nil {
		return err
	}
	return writeJSON(c.App.Writer, result)
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("ingest requires exactly one FILE argument", 2)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	idx, err := openIndex(c.Context, cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	result, err := idx.IngestFile(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	if err := writeJSON(c.App.Writer, result); err != nil {
		return err
	}
	if !result.Success {
		return cli.Exit(fmt.Sprintf("ingest %s: %s", result.Filename, result.Status), 1)
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	idx, err := openIndex(c.Context, cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	status, err := idx.Status(c.Context)
	if err != nil {
		return err
	}
	return writeJSON(c.App.Writer, status)
}
