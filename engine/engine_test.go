package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamlens/streamlens/engine"
	"github.com/streamlens/streamlens/model"
	"github.com/streamlens/streamlens/registry"
)

func scanTree(t *testing.T, files map[string]string, options ...engine.Option) *engine.Report {
	t.Helper()
	root := t.TempDir()
	for path, content := range files {
		full := filepath.Join(root, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	eng, err := engine.New(append(options, engine.WithConcurrency(2))...)
	require.NoError(t, err)
	report, err := eng.Scan(context.Background(), root)
	require.NoError(t, err)
	return report
}

func TestEngine_ScanPythonCustomSerializer(t *testing.T) {
	report := scanTree(t, map[string]string{
		"requirements.txt": "confluent-kafka==2.3.0\n",
		"publisher.py": `import json
from confluent_kafka import Producer

p = Producer({"bootstrap.servers": "localhost:9092"})
p.produce("orders", json.dumps(payload).encode("utf-8"))
`,
	})

	require.NotEmpty(t, report.CallSites)
	for _, site := range report.CallSites {
		assert.Equal(t, model.RoleProducer, site.Role)
		assert.Equal(t, "orders", site.Topic)
		assert.True(t, site.CustomSerializer)
		assert.Empty(t, site.SchemaRegistryURL)
	}

	require.NotEmpty(t, report.Classifications)
	for _, classification := range report.Classifications {
		assert.Equal(t, model.CategoryE, classification.Category)
	}
	assert.False(t, report.Validated)
}

func TestEngine_ScanJavaAutoRegister(t *testing.T) {
	report := scanTree(t, map[string]string{
		"pom.xml": `<project><artifactId>billing</artifactId></project>`,
		"src/main/java/OrderPublisher.java": `public class OrderPublisher {
    void publish(Order order) {
        ProducerRecord<String, Order> rec = new ProducerRecord<>("orders", order);
        producer.send(rec);
    }
}

class Order {
    private String id;
    private double total;
}`,
		"src/main/resources/app.properties": `schema.registry.url=http://localhost:8081
value.serializer=io.confluent.kafka.serializers.KafkaAvroSerializer
auto.register.schemas=true
`,
	})

	require.Len(t, report.CallSites, 1)
	site := report.CallSites[0]
	assert.Equal(t, "billing", site.App)
	assert.Equal(t, "orders", site.Topic)
	assert.True(t, site.AutoRegister)
	// Configuration found in the scope's properties file applies to the
	// scope's call sites.
	assert.Equal(t, "http://localhost:8081", site.SchemaRegistryURL)
	assert.Equal(t, "KafkaAvroSerializer", site.Serializer)

	require.Len(t, report.Flags, 1)
	assert.Equal(t, model.FlagAutoRegister, report.Flags[0].Kind)
	assert.Equal(t, site.ID, report.Flags[0].CallSiteID)

	require.Len(t, report.Classifications, 1)
	assert.Equal(t, model.CategoryC, report.Classifications[0].Category)

	require.Len(t, report.Schemas, 1)
	schema := report.Schemas[0]
	assert.Equal(t, model.ProvenanceDeclaredType, schema.Provenance)
	assert.Equal(t, model.FormatAvro, schema.Format)
	assert.Equal(t, model.KindDouble, schema.Root.GetField("total").Kind)
}

func TestEngine_ScanJavaRegistryIntegrated(t *testing.T) {
	report := scanTree(t, map[string]string{
		"pom.xml": `<project><artifactId>billing</artifactId></project>`,
		"src/OrderPublisher.java": `public class OrderPublisher {
    void publish(Order order) {
        ProducerRecord<String, Order> rec = new ProducerRecord<>("orders", order);
        producer.send(rec);
    }
}

class Order {
    private String id;
}`,
		"src/app.properties": `schema.registry.url=http://localhost:8081
value.serializer=io.confluent.kafka.serializers.KafkaAvroSerializer
`,
	})

	require.Len(t, report.Classifications, 1)
	assert.Equal(t, model.CategoryA, report.Classifications[0].Category)
	assert.Empty(t, report.Flags)
}

func TestEngine_ScanJavaKeyAndValueSerializerPair(t *testing.T) {
	report := scanTree(t, map[string]string{
		"pom.xml": `<project><artifactId>billing</artifactId></project>`,
		"src/OrderPublisher.java": `public class OrderPublisher {
    void publish(Order order) {
        ProducerRecord<String, Order> rec = new ProducerRecord<>("orders", order);
        producer.send(rec);
    }
}

class Order {
    private String id;
}`,
		"src/app.properties": `schema.registry.url=http://localhost:8081
key.serializer=org.apache.kafka.common.serialization.StringSerializer
value.serializer=io.confluent.kafka.serializers.KafkaAvroSerializer
`,
	})

	// The plain key serializer listed first must not mask the registry-aware
	// value serializer configured in the same file.
	require.Len(t, report.CallSites, 1)
	assert.Equal(t, "KafkaAvroSerializer", report.CallSites[0].Serializer)

	require.Len(t, report.Classifications, 1)
	assert.Equal(t, model.CategoryA, report.Classifications[0].Category)
}

func TestEngine_ScanJavaPlainSerializer(t *testing.T) {
	report := scanTree(t, map[string]string{
		"pom.xml": `<project><artifactId>billing</artifactId></project>`,
		"src/Publisher.java": `public class Publisher {
    void setup() {
        props.put("value.serializer", StringSerializer.class.getName());
        ProducerRecord<String, Order> rec = new ProducerRecord<>("orders", order);
    }
}

class Order {
    private String id;
}`,
	})

	require.Len(t, report.Classifications, 1)
	assert.Equal(t, model.CategoryB, report.Classifications[0].Category)
}

func TestEngine_ScanGoUninferable(t *testing.T) {
	report := scanTree(t, map[string]string{
		"go.mod": "module example.com/ingest\n\ngo 1.22\n",
		"main.go": `package main

import "github.com/segmentio/kafka-go"

func main() {
	w := kafka.NewWriter(kafka.WriterConfig{Topic: "events"})
	_ = w
}
`,
	})

	require.Len(t, report.CallSites, 1)
	assert.Equal(t, "ingest", report.CallSites[0].App)
	assert.Equal(t, "events", report.CallSites[0].Topic)

	require.Len(t, report.Classifications, 1)
	assert.Equal(t, model.CategoryD, report.Classifications[0].Category)
	assert.Empty(t, report.Schemas)

	var unresolved int
	for _, warning := range report.Warnings {
		if warning.Kind == model.WarnTypeUnresolvable {
			unresolved++
		}
	}
	assert.Equal(t, 1, unresolved)
}

func TestEngine_ScanConsumersAreNotClassified(t *testing.T) {
	report := scanTree(t, map[string]string{
		"pom.xml": `<project/>`,
		"src/OrderListener.java": `public class OrderListener {
    @KafkaListener(topics = {"orders"})
    public void onOrder(Order order) {
    }
}`,
	})

	require.Len(t, report.CallSites, 1)
	assert.Equal(t, model.RoleConsumer, report.CallSites[0].Role)
	assert.Empty(t, report.Classifications)
	assert.Empty(t, report.Schemas)
}

func TestEngine_ScanEmptyTree(t *testing.T) {
	report := scanTree(t, map[string]string{
		"README.md": "nothing to scan",
	})

	assert.Empty(t, report.CallSites)
	assert.Empty(t, report.Classifications)
	assert.Empty(t, report.Scopes)
}

type fakeValidator struct{}

func (fakeValidator) Infer(ctx context.Context, sample []byte) (*model.SchemaModel, error) {
	return nil, nil
}

func (fakeValidator) Lint(ctx context.Context, schema *model.SchemaModel) ([]string, error) {
	return []string{"record Order has no doc"}, nil
}

func (fakeValidator) Validate(ctx context.Context, schema *model.SchemaModel, target string) (registry.Verdict, error) {
	return registry.VerdictCompatible, nil
}

func TestEngine_ScanWithValidator(t *testing.T) {
	report := scanTree(t, map[string]string{
		"pom.xml": `<project/>`,
		"src/Publisher.java": `public class Publisher {
    void publish(Order order) {
        ProducerRecord<String, Order> rec = new ProducerRecord<>("orders", order);
    }
}

class Order {
    private String id;
}`,
	}, engine.WithValidator(fakeValidator{}))

	assert.True(t, report.Validated)
	require.Len(t, report.Schemas, 1)
	assert.Equal(t, string(registry.VerdictCompatible), report.Schemas[0].Validation)

	var lint int
	for _, warning := range report.Warnings {
		if warning.Kind == model.WarnSchemaLint {
			lint++
		}
	}
	assert.Equal(t, 1, lint)
}

func TestEngine_ScanDeterministicOrdering(t *testing.T) {
	files := map[string]string{
		"pom.xml": `<project/>`,
		"src/A.java": `public class A {
    void a() { kafkaTemplate.send("alpha", x); }
}`,
		"src/B.java": `public class B {
    void b() { kafkaTemplate.send("beta", y); }
}`,
	}

	first := scanTree(t, files)
	second := scanTree(t, files)

	require.Equal(t, len(first.CallSites), len(second.CallSites))
	for i := range first.CallSites {
		assert.Equal(t, first.CallSites[i].Topic, second.CallSites[i].Topic)
		assert.Equal(t, first.CallSites[i].Line, second.CallSites[i].Line)
	}
}
