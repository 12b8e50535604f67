package models

import (
	"time"

	"gorm.io/datatypes"
)

type ContractType string

const (
	ContractTypeFile   ContractType = "file"
	ContractTypeFolder ContractType = "folder"
)

func (t ContractType) Valid() bool {
	return t == ContractTypeFile || t == ContractTypeFolder
}

type DeploymentStatus string

const (
	DeploymentPending  DeploymentStatus = "pending"
	DeploymentDeployed DeploymentStatus = "deployed"
	DeploymentFailed   DeploymentStatus = "failed"
)

// Contract is one node of the workspace tree. Folders and files share the
// table; the tree shape comes from ParentID, Path is informational.
type Contract struct {
	ID               uint             `json:"id" gorm:"primaryKey"`
	Type             ContractType     `json:"type" gorm:"type:varchar(16);index;not null"`
	Name             string           `json:"name" gorm:"not null"`
	Path             string           `json:"path"`
	ParentID         *uint            `json:"parentId" gorm:"index"`
	SourceCode       *string          `json:"sourceCode,omitempty" gorm:"type:text"`
	ABI              datatypes.JSON   `json:"abi,omitempty"`
	Bytecode         *string          `json:"bytecode,omitempty" gorm:"type:text"`
	Address          *string          `json:"address,omitempty" gorm:"size:42"`
	Network          *string          `json:"network,omitempty"`
	TxHash           *string          `json:"txHash,omitempty" gorm:"size:66"`
	DeploymentStatus DeploymentStatus `json:"deploymentStatus,omitempty" gorm:"type:varchar(16)"`
	DeploymentError  *string          `json:"deploymentError,omitempty"`
	OwnerAddress     *string          `json:"ownerAddress" gorm:"size:42;index"` // nil for folders
	CreatedAt        time.Time        `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt        time.Time        `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (c *Contract) IsFolder() bool {
	return c.Type == ContractTypeFolder
}

// OwnedBy reports whether wallet (lowercase) owns the record. Folders are
// never owned.
func (c *Contract) OwnedBy(wallet string) bool {
	return c.OwnerAddress != nil && *c.OwnerAddress == wallet
}

// Compiled reports whether both compilation outputs are present.
func (c *Contract) Compiled() bool {
	return len(c.ABI) > 0 && c.Bytecode != nil && *c.Bytecode != ""
}
