// Package regions holds the fixed AWS region and Azure location catalogs
// used to validate session placement and workspace defaults.
package regions

import "github.com/virga-tools/virga/internal/core"

// AWSRegions is the fixed list of AWS commercial and GovCloud regions.
var AWSRegions = []string{
	"af-south-1",
	"ap-east-1",
	"ap-northeast-1",
	"ap-northeast-2",
	"ap-northeast-3",
	"ap-south-1",
	"ap-south-2",
	"ap-southeast-1",
	"ap-southeast-2",
	"ap-southeast-3",
	"ap-southeast-4",
	"ca-central-1",
	"ca-west-1",
	"cn-north-1",
	"cn-northwest-1",
	"eu-central-1",
	"eu-central-2",
	"eu-north-1",
	"eu-south-1",
	"eu-south-2",
	"eu-west-1",
	"eu-west-2",
	"eu-west-3",
	"il-central-1",
	"me-central-1",
	"me-south-1",
	"sa-east-1",
	"us-east-1",
	"us-east-2",
	"us-gov-east-1",
	"us-gov-west-1",
	"us-west-1",
	"us-west-2",
}

// AzureLocations is the fixed list of Azure locations.
var AzureLocations = []string{
	"australiacentral",
	"australiaeast",
	"australiasoutheast",
	"brazilsouth",
	"canadacentral",
	"canadaeast",
	"centralindia",
	"centralus",
	"eastasia",
	"eastus",
	"eastus2",
	"francecentral",
	"germanywestcentral",
	"japaneast",
	"japanwest",
	"koreacentral",
	"koreasouth",
	"northcentralus",
	"northeurope",
	"norwayeast",
	"southafricanorth",
	"southcentralus",
	"southeastasia",
	"southindia",
	"swedencentral",
	"switzerlandnorth",
	"uaenorth",
	"uksouth",
	"ukwest",
	"westcentralus",
	"westeurope",
	"westindia",
	"westus",
	"westus2",
	"westus3",
}

// ValidAWSRegion reports whether r is a known AWS region.
func ValidAWSRegion(r string) bool {
	for _, region := range AWSRegions {
		if region == r {
			return true
		}
	}
	return false
}

// ValidAzureLocation reports whether l is a known Azure location.
func ValidAzureLocation(l string) bool {
	for _, loc := range AzureLocations {
		if loc == l {
			return true
		}
	}
	return false
}

// ValidForProvider validates a region or location against the catalog for
// the given provider.
func ValidForProvider(p core.Provider, r string) bool {
	if p == core.ProviderAzure {
		return ValidAzureLocation(r)
	}
	return ValidAWSRegion(r)
}
