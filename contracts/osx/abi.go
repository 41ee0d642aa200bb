package osx

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const pluginRepoABIJSON = `[
	{
		"inputs": [
			{"name": "_release", "type": "uint8"},
			{"name": "_pluginSetup", "type": "address"},
			{"name": "_buildMetadata", "type": "bytes"},
			{"name": "_releaseMetadata", "type": "bytes"}
		],
		"name": "createVersion",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "_release", "type": "uint8"}],
		"name": "buildCount",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "latestRelease",
		"outputs": [{"name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{
				"components": [
					{"name": "release", "type": "uint8"},
					{"name": "build", "type": "uint16"}
				],
				"name": "_tag",
				"type": "tuple"
			}
		],
		"name": "getVersion",
		"outputs": [
			{
				"components": [
					{
						"components": [
							{"name": "release", "type": "uint8"},
							{"name": "build", "type": "uint16"}
						],
						"name": "tag",
						"type": "tuple"
					},
					{"name": "pluginSetup", "type": "address"},
					{"name": "buildMetadata", "type": "bytes"}
				],
				"name": "",
				"type": "tuple"
			}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"name": "_release", "type": "uint8"}],
		"name": "getLatestVersion",
		"outputs": [
			{
				"components": [
					{
						"components": [
							{"name": "release", "type": "uint8"},
							{"name": "build", "type": "uint16"}
						],
						"name": "tag",
						"type": "tuple"
					},
					{"name": "pluginSetup", "type": "address"},
					{"name": "buildMetadata", "type": "bytes"}
				],
				"name": "",
				"type": "tuple"
			}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "_where", "type": "address"},
			{"name": "_who", "type": "address"},
			{"name": "_permissionId", "type": "bytes32"},
			{"name": "_data", "type": "bytes"}
		],
		"name": "isGranted",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"name": "initialOwner", "type": "address"}],
		"name": "initialize",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "newImplementation", "type": "address"}],
		"name": "upgradeTo",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "newImplementation", "type": "address"},
			{"name": "data", "type": "bytes"}
		],
		"name": "upgradeToAndCall",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "name": "release", "type": "uint8"},
			{"indexed": false, "name": "build", "type": "uint16"},
			{"indexed": true, "name": "pluginSetup", "type": "address"},
			{"indexed": false, "name": "buildMetadata", "type": "bytes"}
		],
		"name": "VersionCreated",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "name": "release", "type": "uint8"},
			{"indexed": false, "name": "releaseMetadata", "type": "bytes"}
		],
		"name": "ReleaseMetadataUpdated",
		"type": "event"
	}
]`

const pluginRepoFactoryABIJSON = `[
	{
		"inputs": [],
		"name": "pluginRepoBase",
		"outputs": [{"name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "pluginRepoRegistry",
		"outputs": [{"name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "_subdomain", "type": "string"},
			{"name": "_initialOwner", "type": "address"}
		],
		"name": "createPluginRepo",
		"outputs": [{"name": "", "type": "address"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

const pluginRepoRegistryABIJSON = `[
	{
		"inputs": [{"name": "", "type": "address"}],
		"name": "entries",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "name": "subdomain", "type": "string"},
			{"indexed": false, "name": "pluginRepo", "type": "address"}
		],
		"name": "PluginRepoRegistered",
		"type": "event"
	}
]`

const pluginSetupABIJSON = `[
	{
		"inputs": [],
		"name": "implementation",
		"outputs": [{"name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

var (
	PluginRepoABI         = mustParseABI(pluginRepoABIJSON)
	PluginRepoFactoryABI  = mustParseABI(pluginRepoFactoryABIJSON)
	PluginRepoRegistryABI = mustParseABI(pluginRepoRegistryABIJSON)
	PluginSetupABI        = mustParseABI(pluginSetupABIJSON)
)

func mustParseABI(abiJSON string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		panic("failed to parse ABI: " + err.Error())
	}

	return &parsed
}
