// Package hcl provides the concrete HCL implementation of the config.Loader
// interface. It parses animate.hcl files, evaluates their attributes with
// go-cty and translates them into the format-agnostic config.Model.
package hcl
