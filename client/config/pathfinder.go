// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost Developers.
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"os"
	"path/filepath"
)

const (
	configFileName = "config.toml"
	rootDirName    = ".katzenpost"
)

// Pathfinder derives the on-disk locations of a client's files:
//
//	<root>/clients/<id>/config/config.toml
//	<root>/clients/<id>/data/
type Pathfinder struct {
	root string
	id   string
}

// NewPathfinder returns a Pathfinder for the client id under root.  An
// empty root selects DefaultRoot.
func NewPathfinder(root, id string) (*Pathfinder, error) {
	if root == "" {
		var err error
		if root, err = DefaultRoot(); err != nil {
			return nil, err
		}
	}
	return &Pathfinder{
		root: root,
		id:   id,
	}, nil
}

// DefaultRoot is ~/.katzenpost.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, rootDirName), nil
}

// ClientDir is the directory holding everything of the client.
func (p *Pathfinder) ClientDir() string {
	return filepath.Join(p.root, "clients", p.id)
}

// ConfigDir holds the configuration file.
func (p *Pathfinder) ConfigDir() string {
	return filepath.Join(p.ClientDir(), "config")
}

// ConfigFile is where the configuration is saved.
func (p *Pathfinder) ConfigFile() string {
	return filepath.Join(p.ConfigDir(), configFileName)
}

// DataDir holds the client keys.
func (p *Pathfinder) DataDir() string {
	return filepath.Join(p.ClientDir(), "data")
}
