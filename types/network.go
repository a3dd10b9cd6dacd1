package types

// Network selects the Algorand network a payment attempt targets.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// Wallet-connect chain ids used by the Pera wallet protocol.
const (
	ChainIDMainnet = 416001
	ChainIDTestnet = 416002
)

// Well-known USDC ASA ids per network.
var USDCAssetIDs = map[Network]uint64{
	NetworkMainnet: 31566704,
	NetworkTestnet: 10458941,
}

// USDCDecimals is the fractional precision of USDC on Algorand.
const USDCDecimals = 6

// AlgoDecimals is the chain's fixed exponent for the native currency.
const AlgoDecimals = 6

// MinTxnFee is the protocol minimum flat fee in microAlgos.
const MinTxnFee = 1000

func (n Network) IsMainnet() bool { return n == NetworkMainnet }

func (n Network) IsTestnet() bool { return n == NetworkTestnet }

func (n Network) Valid() bool { return n == NetworkMainnet || n == NetworkTestnet }

// ChainID returns the wallet-connect chain id for the network.
func (n Network) ChainID() int {
	if n == NetworkMainnet {
		return ChainIDMainnet
	}
	return ChainIDTestnet
}

func (n Network) String() string { return string(n) }
