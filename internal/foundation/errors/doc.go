// Package errors provides the classified error primitives used across the site builder.
//
// Every failure that aborts a build pass is a ClassifiedError carrying a category
// (config, routing, program, ...) and structured context such as the offending
// source path. The CLI adapter turns the category into a process exit code.
//
// Example usage:
//
//	err := errors.ConfigError("front-matter is not a mapping").
//		WithContext("source", "posts/hello.md").
//		WithCause(yamlErr).
//		Build()
package errors
