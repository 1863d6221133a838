package req

import "pulseboard/internal/model"

type MultiRpcReq struct {
	Rpcs []model.RpcRequest `json:"rpcs" binding:"required"`
}

type InvalidateReq struct {
	Table string `json:"table" binding:"required"`
}
