// Package chains names the chains the coin fixtures know how to fork.
package chains

// Mainnet is the Ethereum mainnet chain ID. The default funding special cases
// and the Ethplorer ranking source only describe mainnet tokens.
const Mainnet uint64 = 1
