package domain

type ChainID uint64
type ChainName string

const (
	// Chain IDs
	ChainIDEthereum    ChainID = 1
	ChainIDArbitrum    ChainID = 42161
	ChainIDArbitrumSep ChainID = 421614
	ChainIDBaseSepolia ChainID = 84532

	// Chain Names (Internal Codes)
	ChainNameEthereum    ChainName = "ETHEREUM_MAINNET"
	ChainNameArbitrum    ChainName = "ARBITRUM_ONE"
	ChainNameArbitrumSep ChainName = "ARBITRUM_SEPOLIA"
	ChainNameBaseSepolia ChainName = "BASE_SEPOLIA"
)

// ChainIDToName maps ChainID to its human-readable InternalCode/Name.
var ChainIDToName = map[ChainID]ChainName{
	ChainIDEthereum:    ChainNameEthereum,
	ChainIDArbitrum:    ChainNameArbitrum,
	ChainIDArbitrumSep: ChainNameArbitrumSep,
	ChainIDBaseSepolia: ChainNameBaseSepolia,
}

// ChainIDToExplorer maps ChainID to the transaction page prefix of its explorer.
var ChainIDToExplorer = map[ChainID]string{
	ChainIDEthereum:    "https://etherscan.io/tx/",
	ChainIDArbitrum:    "https://arbiscan.io/tx/",
	ChainIDArbitrumSep: "https://sepolia.arbiscan.io/tx/",
	ChainIDBaseSepolia: "https://sepolia.basescan.org/tx/",
}
