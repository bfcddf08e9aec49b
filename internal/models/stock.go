package models

// StockItem is a warehouse stock row checked by the stock monitor.
type StockItem struct {
	SKU         string `json:"sku"`
	MerchantID  string `json:"merchantId"`
	WarehouseID string `json:"warehouseId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	Threshold   int    `json:"threshold"`
}
