/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Fri Dec 29 13:18:26 2017 mstenber
 * Last modified: Wed Apr 18 11:02:31 2018 mstenber
 * Edit time:     141 min
 *
 */

// sfs is command line tool for creating and manipulating go-sfs
// volumes.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/fingon/go-sfs/blockdev/factory"
	"github.com/fingon/go-sfs/config"
	"github.com/fingon/go-sfs/fs"
	"github.com/fingon/go-sfs/mlog"
	"github.com/ugorji/go/codec"
	"github.com/urfave/cli/v2"
)

func loadConfig(c *cli.Context) (*config.Configuration, error) {
	conf, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("backend") {
		conf.Backend = c.String("backend")
	}
	if c.IsSet("password") {
		conf.Password = c.String("password")
	}
	if c.IsSet("mlog") {
		conf.Mlog = c.String("mlog")
	}
	if conf.Mlog != "" {
		mlog.SetPattern(conf.Mlog)
	}
	return conf, nil
}

func arg(c *cli.Context, i int, name string) (string, error) {
	if c.NArg() <= i {
		return "", fmt.Errorf("missing argument %s", name)
	}
	return c.Args().Get(i), nil
}

// withFs mounts the STORE given as the first argument for the
// duration of cb.
func withFs(cb func(c *cli.Context, m *fs.Fs) error) cli.ActionFunc {
	return func(c *cli.Context) (err error) {
		conf, err := loadConfig(c)
		if err != nil {
			return
		}
		store, err := arg(c, 0, "STORE")
		if err != nil {
			return
		}
		m, err := fs.MountFs(store, conf.Options())
		if err != nil {
			return
		}
		defer func() {
			if uerr := m.Unmount(); err == nil {
				err = uerr
			}
		}()
		return cb(c, m)
	}
}

func mkfs(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, err := arg(c, 0, "STORE")
	if err != nil {
		return err
	}
	opts := conf.Options()
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"total-blocks", &opts.Config.TotalBlocks},
		{"max-files", &opts.Config.MaxFiles},
		{"max-descriptors", &opts.Config.MaxDescriptors},
	} {
		if c.IsSet(f.name) {
			*f.dst = c.Int(f.name)
		}
	}
	return fs.MakeFs(store, opts)
}

func ls(c *cli.Context, m *fs.Fs) error {
	l, err := m.List()
	if err != nil {
		return err
	}
	for _, fi := range l {
		fmt.Fprintf(c.App.Writer, "%-15s %10d %6d\n", fi.Name, fi.Size, fi.Blocks)
	}
	return nil
}

func put(c *cli.Context, m *fs.Fs) (err error) {
	hostfile, err := arg(c, 1, "HOSTFILE")
	if err != nil {
		return
	}
	name := c.Args().Get(2)
	if name == "" {
		name = hostfile
	}
	r, err := os.Open(hostfile)
	if err != nil {
		return
	}
	defer r.Close()
	if err = m.Create(name); err != nil {
		if _, serr := m.Stat(name); serr != nil {
			return
		}
	}
	f, err := m.OpenFile(name)
	if err != nil {
		return
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err = f.Truncate(0); err != nil {
		return
	}
	_, err = io.Copy(f, r)
	return
}

func cat(c *cli.Context, m *fs.Fs) error {
	name, err := arg(c, 1, "NAME")
	if err != nil {
		return err
	}
	f, err := m.OpenFile(name)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(c.App.Writer, f)
	return err
}

func rm(c *cli.Context, m *fs.Fs) error {
	name, err := arg(c, 1, "NAME")
	if err != nil {
		return err
	}
	return m.Delete(name)
}

func truncate(c *cli.Context, m *fs.Fs) error {
	name, err := arg(c, 1, "NAME")
	if err != nil {
		return err
	}
	s, err := arg(c, 2, "LENGTH")
	if err != nil {
		return err
	}
	length, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	f, err := m.OpenFile(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Truncate(length)
}

func stat(c *cli.Context, m *fs.Fs) error {
	info, err := m.Info()
	if err != nil {
		return err
	}
	var jh codec.JsonHandle
	if err = codec.NewEncoder(c.App.Writer, &jh).Encode(info); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer)
	return nil
}

func check(c *cli.Context, m *fs.Fs) error {
	if err := m.Check(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s: ok\n", m.Name())
	return nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "sfs",
		Usage: "create and manipulate simple file system volumes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "backend",
				Usage: fmt.Sprintf("block device backend (possible: %v)", factory.List()),
			},
			&cli.StringFlag{
				Name:  "password",
				Usage: "encrypt the volume with password",
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML configuration file",
				EnvVars: []string{"SFS_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "mlog",
				Usage: "enable logging matching the file tag regular expression",
			},
		},
		Commands: []*cli.Command{{
			Name:      "mkfs",
			Usage:     "create new empty volume",
			ArgsUsage: "STORE",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "total-blocks", Usage: "size of the volume in blocks"},
				&cli.IntFlag{Name: "max-files", Usage: "number of directory entries"},
				&cli.IntFlag{Name: "max-descriptors", Usage: "number of file descriptors"},
			},
			Action: mkfs,
		}, {
			Name:      "ls",
			Usage:     "list files",
			ArgsUsage: "STORE",
			Action:    withFs(ls),
		}, {
			Name:      "put",
			Usage:     "copy host file to the volume",
			ArgsUsage: "STORE HOSTFILE [NAME]",
			Action:    withFs(put),
		}, {
			Name:      "cat",
			Usage:     "write file contents to standard output",
			ArgsUsage: "STORE NAME",
			Action:    withFs(cat),
		}, {
			Name:      "rm",
			Usage:     "remove file",
			ArgsUsage: "STORE NAME",
			Action:    withFs(rm),
		}, {
			Name:      "truncate",
			Usage:     "shrink file",
			ArgsUsage: "STORE NAME LENGTH",
			Action:    withFs(truncate),
		}, {
			Name:      "stat",
			Usage:     "show volume information as JSON",
			ArgsUsage: "STORE",
			Action:    withFs(stat),
		}, {
			Name:      "check",
			Usage:     "verify volume consistency",
			ArgsUsage: "STORE",
			Action:    withFs(check),
		}},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
