// Package layers resolves the versioned AWS Distro for OpenTelemetry collector Lambda
// layer attached to the API function.
//
// The collector is published by AWS in account 901920570463 once per region, processor
// architecture and collector version. References are built locally and are not checked
// against the publisher; an unpublished combination only fails when CloudFormation
// provisions the function.
package layers

import "fmt"

const (
	// PublisherAccount owns the public aws-otel-collector layers.
	PublisherAccount = "901920570463"

	ArchAMD64 = "amd64"
	ArchARM64 = "arm64"

	// CollectorVersion is the pinned collector release and layer version.
	CollectorVersion = "0-102-1:1"
)

// Reference identifies one published collector layer version.
type Reference struct {
	Region       string `yaml:"region"`
	Architecture string `yaml:"architecture"`
	Version      string `yaml:"version"`
}

// ARN renders the layer version ARN for the reference.
func (r Reference) ARN() string {
	return Resolve(r.Region, r.Architecture, r.Version)
}

// Resolve returns the collector layer version ARN for region, arch and version.
// It depends on nothing else and performs no lookups.
func Resolve(region, arch, version string) string {
	return fmt.Sprintf("arn:aws:lambda:%s:%s:layer:aws-otel-collector-%s-ver-%s", region, PublisherAccount, arch, version)
}

// Collector returns the pinned amd64 collector reference for region.
func Collector(region string) Reference {
	return Reference{Region: region, Architecture: ArchAMD64, Version: CollectorVersion}
}
