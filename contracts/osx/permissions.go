package osx

import "github.com/ethereum/go-ethereum/crypto"

// Permission IDs are the keccak256 hash of the permission name.
var (
	RootPermissionID        = PermissionID("ROOT_PERMISSION")
	UpgradeRepoPermissionID = PermissionID("UPGRADE_REPO_PERMISSION")
	MaintainerPermissionID  = PermissionID("MAINTAINER_PERMISSION")
)

// RepoCreatorPermissions are granted to the initial owner of a new repo.
var RepoCreatorPermissions = map[string][32]byte{
	"ROOT_PERMISSION":         RootPermissionID,
	"UPGRADE_REPO_PERMISSION": UpgradeRepoPermissionID,
	"MAINTAINER_PERMISSION":   MaintainerPermissionID,
}

func PermissionID(name string) [32]byte {
	return crypto.Keccak256Hash([]byte(name))
}
