package adapter

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// propertyLedgerABI is the application ABI of the property ledger contract.
// Only the surface this service uses is declared.
const propertyLedgerABI = `[
  {"type":"function","name":"getAllPropertiesCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getPropertyDetails","stateMutability":"view","inputs":[{"name":"propertyId","type":"uint256"}],"outputs":[
    {"name":"name","type":"string"},
    {"name":"location","type":"string"},
    {"name":"description","type":"string"},
    {"name":"imageURI","type":"string"},
    {"name":"totalCost","type":"uint256"},
    {"name":"totalNumberOfTokens","type":"uint256"},
    {"name":"pricePerToken","type":"uint256"},
    {"name":"isActive","type":"bool"}]},
  {"type":"function","name":"getMyTokens","stateMutability":"view","inputs":[{"name":"propertyId","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getAllSellOrders","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"tuple[]","components":[
    {"name":"orderId","type":"uint256"},
    {"name":"propertyId","type":"uint256"},
    {"name":"seller","type":"address"},
    {"name":"tokenAmount","type":"uint256"},
    {"name":"pricePerToken","type":"uint256"},
    {"name":"isActive","type":"bool"}]}]},
  {"type":"function","name":"getMySellOrders","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"tuple[]","components":[
    {"name":"orderId","type":"uint256"},
    {"name":"propertyId","type":"uint256"},
    {"name":"seller","type":"address"},
    {"name":"tokenAmount","type":"uint256"},
    {"name":"pricePerToken","type":"uint256"},
    {"name":"isActive","type":"bool"}]}]},
  {"type":"function","name":"purchasePropertyTokens","stateMutability":"payable","inputs":[{"name":"propertyId","type":"uint256"},{"name":"tokenAmount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"sellPropertyTokens","stateMutability":"nonpayable","inputs":[{"name":"propertyId","type":"uint256"},{"name":"tokenAmount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"createSellOrder","stateMutability":"nonpayable","inputs":[{"name":"propertyId","type":"uint256"},{"name":"tokenAmount","type":"uint256"},{"name":"pricePerToken","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"cancelSellOrder","stateMutability":"nonpayable","inputs":[{"name":"orderId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"buyFromSellOrder","stateMutability":"payable","inputs":[{"name":"orderId","type":"uint256"}],"outputs":[]}
]`

// rawProperty mirrors the getPropertyDetails return tuple.
type rawProperty struct {
	Name                string
	Location            string
	Description         string
	ImageURI            string
	TotalCost           *big.Int
	TotalNumberOfTokens *big.Int
	PricePerToken       *big.Int
	IsActive            bool
}

// rawSellOrder mirrors one element of the sell-order tuple arrays.
type rawSellOrder struct {
	OrderId       *big.Int
	PropertyId    *big.Int
	Seller        common.Address
	TokenAmount   *big.Int
	PricePerToken *big.Int
	IsActive      bool
}
