package output

import (
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

type (
	Model struct {
		Network   Network                   `yaml:"network"`
		Contracts map[string]ContractConfig `yaml:"contracts"`
	}

	Network struct {
		ChainID uint64 `yaml:"chain-id"`
		RPCURL  string `yaml:"rpc-url"`
		Target  string `yaml:"target"`
	}

	ContractConfig struct {
		Address common.Address            `yaml:"address"`
		TxHash  common.Hash               `yaml:"tx-hash"`
		Links   map[string]common.Address `yaml:"links,omitempty"`
		ABI     SingleQuotedString        `yaml:"abi"`
	}

	SingleQuotedString string
)

func (s SingleQuotedString) MarshalYAML() (any, error) {
	node := &yaml.Node{
		Kind:  yaml.ScalarNode,
		Style: yaml.SingleQuotedStyle,
		Value: string(s),
	}
	return node, nil
}
