package funding

import (
	"github.com/ethereum/go-ethereum/common"
)

// SpecialCase funds a token through a privileged account instead of draining
// holders. Method is called as Method(target, amount) from Sender.
type SpecialCase struct {
	Token  common.Address `yaml:"token"`
	Method string         `yaml:"method"`
	Sender common.Address `yaml:"sender"`
}

// DefaultSpecialCases lists the mainnet tokens whose holders cannot supply
// arbitrary amounts.
var DefaultSpecialCases = []SpecialCase{
	{
		// USDN
		Token:  common.HexToAddress("0x674C6Ad92Fd080e4004b2312b45f796a192D27a0"),
		Method: "deposit(address,uint256)",
		Sender: common.HexToAddress("0x90f85042533F11b362769ea9beE20334584Dcd7D"),
	},
	{
		Token:  common.HexToAddress("0x0E2EC54fC0B509F445631Bf4b91AB8168230C752"),
		Method: "mint(address,uint256)",
		Sender: common.HexToAddress("0x62F31E08e279f3091d9755a09914DF97554eAe0b"),
	},
}
