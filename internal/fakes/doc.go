// Package fakes provides test doubles for secret engines and the cloud SDK
// clients they depend on.
//
// Fakes are manually implemented (not generated) to provide precise control
// over test behavior. All of them are safe for concurrent use.
//
// Usage:
//
//	engine := fakes.NewFakeEngine("s3").WithValue("test")
//	registry, _ := engines.NewRegistry(engine)
//	resolver := resolve.New(registry)
//	value, err := resolver.Decrypt(ctx, "encrypted:s3!paramName:paramValue")
package fakes
