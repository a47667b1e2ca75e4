package config

type WorkerKeyStruct struct {
	PersistDeliveriesQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistDeliveriesQueue: "persist_deliveries_queue",
}
