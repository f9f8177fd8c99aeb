// go-fram
// Copyright (c) 2025 The go-fram Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-fram.
//
// go-fram is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-fram is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-fram; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package config loads FRAM device profiles from YAML files.
//
// A profile carries what the firmware build used to hard-code for a chip:
// its bus, address and size, the page size used to split writes, the
// command timeout and the wait between write chunks.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	fram "github.com/jakubarm/go-fram"
	"gopkg.in/yaml.v3"
)

// Profile defaults
const (
	DefaultSize       = fram.MaxSize
	DefaultPageSize   = 8
	DefaultTimeout    = time.Second
	DefaultWriteDelay = time.Millisecond
)

// LoadError reports a profile file that could not be loaded
type LoadError struct {
	Cause   error
	File    string
	Message string
}

// Error implements the error interface
func (e *LoadError) Error() string {
	msg := e.Message
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Profile describes one FRAM chip
type Profile struct {
	Name       string        `yaml:"name"`
	Bus        string        `yaml:"bus"`
	Timeout    time.Duration `yaml:"timeout"`
	WriteDelay time.Duration `yaml:"write_delay"`
	Size       int           `yaml:"size"`
	PageSize   int           `yaml:"page_size"`
	Address    uint8         `yaml:"address"`
}

// File is the root of a profile document
type File struct {
	Devices []Profile `yaml:"devices"`
}

// Parse parses a profile document, applies defaults and validates every profile
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}

	if len(f.Devices) == 0 {
		return nil, &LoadError{Message: "no devices defined"}
	}

	seen := make(map[string]bool, len(f.Devices))
	for i := range f.Devices {
		p := &f.Devices[i]
		p.ApplyDefaults()
		if err := p.Validate(); err != nil {
			return nil, &LoadError{Message: fmt.Sprintf("device %d", i), Cause: err}
		}
		if seen[p.Name] {
			return nil, &LoadError{Message: fmt.Sprintf("duplicate device name %q", p.Name)}
		}
		seen[p.Name] = true
	}

	return &f, nil
}

// Load reads and parses a profile file
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	f, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	return f, nil
}

// Profile returns the named profile. An empty name selects the only
// profile of a single-device file.
func (f *File) Profile(name string) (*Profile, error) {
	if name == "" {
		if len(f.Devices) == 1 {
			return &f.Devices[0], nil
		}
		return nil, fmt.Errorf("%d devices defined, a profile name is required", len(f.Devices))
	}
	for i := range f.Devices {
		if f.Devices[i].Name == name {
			return &f.Devices[i], nil
		}
	}
	return nil, fmt.Errorf("profile %q not found", name)
}

// Default returns a profile for an MB85RC04V at its default address
func Default() Profile {
	p := Profile{Name: "default", Address: fram.DefaultAddress}
	p.ApplyDefaults()
	return p
}

// ApplyDefaults fills the unset fields
func (p *Profile) ApplyDefaults() {
	if p.Address == 0 {
		p.Address = fram.DefaultAddress
	}
	if p.Size == 0 {
		p.Size = DefaultSize
	}
	if p.PageSize == 0 {
		p.PageSize = DefaultPageSize
	}
	if p.Timeout == 0 {
		p.Timeout = DefaultTimeout
	}
	if p.WriteDelay == 0 {
		p.WriteDelay = DefaultWriteDelay
	}
}

// Validate checks the profile describes a usable chip
func (p *Profile) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Address > 0x7F || p.Address&0x01 != 0 {
		return fmt.Errorf("%s: address 0x%02X must be an even 7-bit address", p.Name, p.Address)
	}
	if p.Size <= 0 || p.Size > fram.MaxSize {
		return fmt.Errorf("%s: size %d not in 1..%d", p.Name, p.Size, fram.MaxSize)
	}
	if p.PageSize <= 0 || p.PageSize > 256 || p.PageSize&(p.PageSize-1) != 0 {
		return fmt.Errorf("%s: page size %d is not a power of two in 1..256", p.Name, p.PageSize)
	}
	if p.Timeout < 0 || p.WriteDelay < 0 {
		return fmt.Errorf("%s: durations must not be negative", p.Name)
	}
	return nil
}

// Options converts the profile to device options
func (p *Profile) Options() []fram.Option {
	return []fram.Option{
		fram.WithTimeout(p.Timeout),
		fram.WithPageSize(p.PageSize),
		fram.WithWriteDelay(p.WriteDelay),
	}
}

// Open creates a device for the profile on bus
func (p *Profile) Open(bus fram.Bus, opts ...fram.Option) (*fram.Device, error) {
	return fram.New(bus, p.Address, p.Size, append(p.Options(), opts...)...)
}
