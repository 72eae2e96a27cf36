// Package mqtt is the broker link used when the panel and the host run as
// separate processes:
//
//	panel (host.MQTTConnection) <-> broker <-> host (host.ServeMQTT)
//
// A service call goes out on a per-request topic and is answered on a
// response topic with the same correlation id; see Topics. The host's
// entity snapshot and the creator's own online/offline StatusMessage are
// retained. The offline status is also registered as the connection's
// will, so subscribers learn of a crash without waiting for a timeout.
//
// Subscriptions are remembered and placed again after every reconnect.
//
// Anyone able to publish on automationcreator/request/# can create
// automations. Restrict it with broker ACLs and enable TLS
// (mqtt.broker.tls) beyond a single machine.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllServiceResponses(), 1,
//	    func(topic string, payload []byte) error {
//	        id, _ := mqtt.Topics{}.ParseServiceResponse(topic)
//	        return deliver(id, payload)
//	    })
package mqtt
