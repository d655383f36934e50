package constants

const (
	ExternalName = "crypto-ingestor"
	Version      = "1.0.0"

	TaskFetchTopCoins        = "fetch_top_coins"
	TaskFetchCoinHistory     = "fetch_coin_history"
	TaskFetchAllCoinsHistory = "fetch_all_coins_history"
)
