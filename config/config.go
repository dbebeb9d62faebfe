/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Tue Apr 17 14:02:20 2018 mstenber
 * Last modified: Tue Apr 17 15:10:48 2018 mstenber
 * Edit time:     38 min
 *
 */

// config loads go-sfs settings: first the defaults, then optional
// YAML file, and finally SFS_* environment variables.
package config

import (
	"fmt"
	"io/ioutil"

	"github.com/fingon/go-sfs/blockdev/factory"
	"github.com/fingon/go-sfs/fs"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const EnvPrefix = "SFS"

type Configuration struct {
	Backend    string `envconfig:"BACKEND"    yaml:"backend"`
	Password   string `envconfig:"PASSWORD"   yaml:"password"`
	Salt       string `envconfig:"SALT"       yaml:"salt"`
	Iterations int    `envconfig:"ITERATIONS" yaml:"iterations"`

	// Volume geometry; only used when creating volumes
	TotalBlocks    int `envconfig:"TOTAL_BLOCKS"    yaml:"totalBlocks"`
	MaxFiles       int `envconfig:"MAX_FILES"       yaml:"maxFiles"`
	MaxDescriptors int `envconfig:"MAX_DESCRIPTORS" yaml:"maxDescriptors"`
	MapBlocks      int `envconfig:"MAP_BLOCKS"      yaml:"mapBlocks"`

	// Mlog is the mlog pattern
	Mlog string `envconfig:"MLOG" yaml:"mlog"`
}

func Default() *Configuration {
	return &Configuration{
		Backend:        factory.DefaultBackend,
		TotalBlocks:    fs.DefaultTotalBlocks,
		MaxFiles:       fs.DefaultMaxFiles,
		MaxDescriptors: fs.DefaultMaxDescriptors,
		MapBlocks:      fs.DefaultMapBlocks,
	}
}

// Load returns the configuration; path may be empty, in which case
// only defaults and environment are used.
func Load(path string) (*Configuration, error) {
	c := Default()
	if path != "" {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, c); err != nil {
			return nil, fmt.Errorf("unmarshaling config file: %w", err)
		}
	}
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	return c, nil
}

func (self *Configuration) Options() fs.Options {
	return fs.Options{
		Backend:    self.Backend,
		Password:   self.Password,
		Salt:       self.Salt,
		Iterations: self.Iterations,
		Config: fs.Config{
			TotalBlocks:    self.TotalBlocks,
			MaxFiles:       self.MaxFiles,
			MaxDescriptors: self.MaxDescriptors,
			MapBlocks:      self.MapBlocks,
		},
	}
}
