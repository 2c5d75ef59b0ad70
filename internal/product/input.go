// Package product holds the listing input record and the mappings from its
// semantic values to the labels the seller UI shows.
package product

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// WhoMade enumerates the answers to the "Who made it?" question.
type WhoMade string

const (
	WhoMadeIDid        WhoMade = "i_did"
	WhoMadeSomeoneElse WhoMade = "someone_else"
	WhoMadeCollective  WhoMade = "collective"
)

var whoMadeLabels = map[WhoMade]string{
	WhoMadeIDid:        "I did",
	WhoMadeSomeoneElse: "Another company or person",
	WhoMadeCollective:  "A member of my shop",
}

// Label returns the radio label for w and whether w is a known value.
func (w WhoMade) Label() (string, bool) {
	l, ok := whoMadeLabels[w]
	return l, ok
}

// ListingType enumerates the kinds of items that can be listed.
type ListingType string

const (
	TypePhysical ListingType = "physical"
	TypeDownload ListingType = "download"
	TypeBoth     ListingType = "both"
)

const (
	finishedProductLabel = "A finished product"
	supplyLabel          = "A supply or tool to make things"
)

// Input is everything needed to create one listing.
type Input struct {
	CategoryQuery   string      `yaml:"category_query" json:"categoryQuery"`
	Title           string      `yaml:"title,omitempty" json:"title,omitempty"`
	Description     string      `yaml:"description,omitempty" json:"description,omitempty"`
	Price           *float64    `yaml:"price,omitempty" json:"price,omitempty"`
	Quantity        *int        `yaml:"quantity,omitempty" json:"quantity,omitempty"`
	WhoMade         WhoMade     `yaml:"who_made,omitempty" json:"whoMade,omitempty"`
	WhenMade        string      `yaml:"when_made,omitempty" json:"whenMade,omitempty"`
	Type            ListingType `yaml:"type,omitempty" json:"type,omitempty"`
	IsSupply        bool        `yaml:"is_supply,omitempty" json:"isSupply,omitempty"`
	Tags            []string    `yaml:"tags,omitempty" json:"tags,omitempty"`
	Materials       []string    `yaml:"materials,omitempty" json:"materials,omitempty"`
	Styles          []string    `yaml:"styles,omitempty" json:"styles,omitempty"`
	Images          []string    `yaml:"images,omitempty" json:"images,omitempty"`
	ShippingProfile string      `yaml:"shipping_profile,omitempty" json:"shippingProfile,omitempty"`
}

// WhatIsItLabel returns the radio label answering "What is it?".
func (in Input) WhatIsItLabel() string {
	if in.IsSupply {
		return supplyLabel
	}
	return finishedProductLabel
}

// ImagePaths returns the image references with surrounding whitespace and
// stray quotes removed. Empty entries are dropped.
func (in Input) ImagePaths() []string {
	paths := make([]string, 0, len(in.Images))
	for _, p := range in.Images {
		p = strings.Trim(strings.TrimSpace(p), `'"`)
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// Validate checks the invariants that must hold before a run is started.
// Image references are checked against the file system, so this should be
// called right before submission.
func (in Input) Validate() error {
	var errs []error
	if strings.TrimSpace(in.CategoryQuery) == "" {
		errs = append(errs, errors.New("category_query must not be empty"))
	}
	if in.WhoMade != "" {
		if _, ok := in.WhoMade.Label(); !ok {
			errs = append(errs, fmt.Errorf("unknown who_made %q%s", in.WhoMade, didYouMean(string(in.WhoMade), whoMadeValues())))
		}
	}
	switch in.Type {
	case "", TypePhysical, TypeDownload, TypeBoth:
	default:
		errs = append(errs, fmt.Errorf("unknown type %q%s", in.Type, didYouMean(string(in.Type), []string{string(TypePhysical), string(TypeDownload), string(TypeBoth)})))
	}
	if in.Price != nil && *in.Price < 0 {
		errs = append(errs, fmt.Errorf("price must not be negative, got %v", *in.Price))
	}
	if in.Quantity != nil && *in.Quantity < 0 {
		errs = append(errs, fmt.Errorf("quantity must not be negative, got %d", *in.Quantity))
	}
	for _, p := range in.ImagePaths() {
		fi, err := os.Stat(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("image %s: %w", p, err))
			continue
		}
		if fi.IsDir() {
			errs = append(errs, fmt.Errorf("image %s is a directory", p))
		}
	}
	return errors.Join(errs...)
}

// LoadFile reads a product input from a yaml file.
func LoadFile(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var in Input
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to parse product file %s: %w", path, err)
	}
	return &in, nil
}

// WriteFile stores in as yaml at path.
func WriteFile(path string, in *Input) error {
	data, err := yaml.Marshal(in)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func whoMadeValues() []string {
	return []string{string(WhoMadeIDid), string(WhoMadeSomeoneElse), string(WhoMadeCollective)}
}
